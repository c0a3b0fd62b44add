package classifier

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig points the generator at an OpenAI-compatible endpoint, e.g.
// Ollama's http://localhost:11434/v1.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
}

// OpenAIGenerator implements Generator with chat completions.
type OpenAIGenerator struct {
	client openai.Client
}

// NewOpenAIGenerator creates a generator. SDK retries are disabled; timeouts
// come from the caller's context.
func NewOpenAIGenerator(cfg OpenAIConfig) *OpenAIGenerator {
	apiKey := cfg.APIKey
	if apiKey == "" {
		// Ollama ignores the key but the SDK always sends one.
		apiKey = "ollama"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	return &OpenAIGenerator{client: openai.NewClient(opts...)}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var msg openai.ChatCompletionMessageParamUnion
	if req.ImageURL != "" {
		msg = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(req.Prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: req.ImageURL}),
		})
	} else {
		msg = openai.UserMessage(req.Prompt)
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    []openai.ChatCompletionMessageParamUnion{msg},
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
