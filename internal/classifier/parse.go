package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/blocksweep/blocksweep/internal/moderation"
	"github.com/kaptinlin/jsonschema"
)

var (
	errNoJSON           = errors.New("no json object in model output")
	errEmptyDescription = errors.New("empty image description")
)

// Verdict is a normalized intent judgment.
type Verdict struct {
	Intent    moderation.Intent `json:"intent"`
	Reasoning string            `json:"reasoning"`
}

// verdictSchema constrains the shape of the model's reply. Intent values are
// not enumerated here; NormalizeIntent coerces unknown ones.
const verdictSchema = `{
	"type": "object",
	"required": ["intent"],
	"properties": {
		"intent": {"type": "string"},
		"reasoning": {"type": ["string", "null"]}
	}
}`

var fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.NewCompiler().Compile([]byte(verdictSchema))
	})
	return schema, schemaErr
}

// ParseResponse extracts a verdict from raw model output. A fenced code block
// is tried first, then the whole output as a JSON object. Anything else yields
// an unknown intent whose reasoning names the cause.
func ParseResponse(raw string) Verdict {
	v, err := decodeVerdict(raw)
	if err != nil {
		return Verdict{Intent: moderation.IntentUnknown, Reasoning: err.Error()}
	}
	return v
}

func decodeVerdict(raw string) (Verdict, error) {
	bare := strings.TrimSpace(raw)
	m := fencedBlock.FindStringSubmatch(bare)
	if m == nil {
		return decodePayload(bare)
	}

	v, err := decodePayload(m[1])
	if err == nil {
		return v, nil
	}
	// Backticks inside a JSON string value also look like a fence.
	if bv, bareErr := decodePayload(bare); bareErr == nil {
		return bv, nil
	}
	return Verdict{}, err
}

func decodePayload(payload string) (Verdict, error) {
	if payload == "" {
		return Verdict{}, errNoJSON
	}

	s, err := compiledSchema()
	if err != nil {
		return Verdict{}, fmt.Errorf("compiling verdict schema: %w", err)
	}
	if !json.Valid([]byte(payload)) {
		return Verdict{}, fmt.Errorf("parsing model output: %w", errNoJSON)
	}
	if result := s.ValidateJSON([]byte(payload)); !result.IsValid() {
		return Verdict{}, fmt.Errorf("model output does not match verdict schema: %v", result.Errors)
	}

	var reply struct {
		Intent    string `json:"intent"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return Verdict{}, fmt.Errorf("parsing model output: %w", err)
	}

	return Verdict{
		Intent:    moderation.NormalizeIntent(reply.Intent),
		Reasoning: strings.TrimSpace(reply.Reasoning),
	}, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
