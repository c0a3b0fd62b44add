// Package classifier judges a post's stance toward a keyword from its text and
// image descriptions.
//
// Every failure of the generation model (network, timeout, malformed output)
// degrades to an unknown intent; Classify never returns an error.
package classifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/blocksweep/blocksweep/internal/moderation"
	"github.com/blocksweep/blocksweep/internal/platform/telemetry"
)

// ReasonNoAnalysis is the reasoning of a post that produced no classifiable
// signal.
const ReasonNoAnalysis = "no analysis performed"

// GenerateRequest is one call to the generation model.
type GenerateRequest struct {
	Model       string
	Prompt      string
	ImageURL    string  // set for image description calls
	Temperature float64
}

// Generator produces raw model output for a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Config configures the classifier.
type Config struct {
	Model       string        // text intent model
	VisionModel string        // image description model, defaults to Model
	Temperature float64
	Timeout     time.Duration // per generation call, default 20s
}

// Option customises a Classifier.
type Option func(*Classifier)

// WithMetrics records generation calls and final records.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// Classifier runs the text-then-images intent pipeline for one post.
type Classifier struct {
	gen     Generator
	cfg     Config
	metrics *telemetry.Metrics
}

// New creates a Classifier.
func New(gen Generator, cfg Config, opts ...Option) *Classifier {
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	c := &Classifier{gen: gen, cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify evaluates the post's text first, then its images in order, and
// stops at the first supportive signal. Without a supportive signal it returns
// the last computed record.
func (c *Classifier) Classify(ctx context.Context, post moderation.Post, keyword string) moderation.Record {
	var last *moderation.Record

	if post.HasText() {
		rec := c.record(post, keyword, c.Intent(ctx, keyword, post.Text, ""), moderation.SourceText)
		if rec.IsSupportive {
			return c.finish(post, rec)
		}
		last = &rec
	}

	for k, imageURL := range post.Images {
		desc, err := c.Describe(ctx, imageURL)
		if err != nil {
			slog.Warn("image description failed, skipping image",
				"post_uri", post.URI, "image", k, "error", err)
			continue
		}
		rec := c.record(post, keyword, c.Intent(ctx, keyword, "", desc), moderation.ImageSource(k))
		if rec.IsSupportive {
			return c.finish(post, rec)
		}
		last = &rec
	}

	if last != nil {
		return c.finish(post, *last)
	}

	rec := c.record(post, keyword, Verdict{Intent: moderation.IntentUnknown, Reasoning: ReasonNoAnalysis}, moderation.SourceNone)
	return c.finish(post, rec)
}

// Intent runs one intent judgment over either text or an image description.
func (c *Classifier) Intent(ctx context.Context, keyword, text, imageDescription string) Verdict {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	raw, err := c.gen.Generate(ctx, GenerateRequest{
		Model:       c.cfg.Model,
		Prompt:      IntentPrompt(keyword, text, imageDescription),
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		c.metrics.ObserveGenerate("classify", "error")
		slog.Warn("intent generation failed", "keyword", keyword, "error", err)
		return Verdict{Intent: moderation.IntentUnknown, Reasoning: "classification request failed: " + err.Error()}
	}

	v, err := decodeVerdict(raw)
	if err != nil {
		c.metrics.ObserveGenerate("classify", "parse_error")
		slog.Warn("intent response unparseable", "keyword", keyword, "error", err, "raw", truncate(raw, 500))
		return Verdict{Intent: moderation.IntentUnknown, Reasoning: err.Error()}
	}

	c.metrics.ObserveGenerate("classify", "ok")
	slog.Debug("intent classified", "keyword", keyword, "intent", v.Intent, "reasoning", v.Reasoning)
	return v
}

// Describe asks the vision model for a prose description of an image.
func (c *Classifier) Describe(ctx context.Context, imageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	desc, err := c.gen.Generate(ctx, GenerateRequest{
		Model:       c.cfg.VisionModel,
		Prompt:      DescribePrompt,
		ImageURL:    imageURL,
		Temperature: c.cfg.Temperature,
	})
	if err == nil && isBlank(desc) {
		err = errEmptyDescription
	}
	if err != nil {
		c.metrics.ObserveGenerate("describe", "error")
		return "", err
	}
	c.metrics.ObserveGenerate("describe", "ok")
	return desc, nil
}

func (c *Classifier) record(post moderation.Post, keyword string, v Verdict, source moderation.Source) moderation.Record {
	return moderation.Record{
		Keyword:      keyword,
		Intent:       v.Intent,
		IsSupportive: v.Intent == moderation.IntentSupportive,
		Reasoning:    v.Reasoning,
		Source:       source,
		PostURI:      post.URI,
		AuthorDID:    post.AuthorDID,
		Content:      post.Text,
	}
}

func (c *Classifier) finish(post moderation.Post, rec moderation.Record) moderation.Record {
	c.metrics.ObserveClassification(string(rec.Source), string(rec.Intent))
	slog.Info("post classified",
		"post_uri", post.URI,
		"author", post.AuthorDID,
		"keyword", rec.Keyword,
		"intent", rec.Intent,
		"is_supportive", rec.IsSupportive,
		"source", rec.Source,
		"reasoning", rec.Reasoning,
	)
	return rec
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
