package classifier_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blocksweep/blocksweep/internal/classifier"
	"github.com/blocksweep/blocksweep/internal/moderation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const imageMarker = "Description of an image"

// fakeGenerator answers describe calls and intent calls from per-input tables.
type fakeGenerator struct {
	mu sync.Mutex

	// descriptions maps image URL to description; a missing URL fails.
	descriptions map[string]string
	// intents maps a substring of the prompt to the raw model reply.
	intents map[string]string
	err     error

	describeCalls    []string
	textCalls        int
	imageIntentCalls int
}

func (g *fakeGenerator) Generate(_ context.Context, req classifier.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if req.ImageURL != "" {
		g.describeCalls = append(g.describeCalls, req.ImageURL)
		desc, ok := g.descriptions[req.ImageURL]
		if !ok {
			return "", errors.New("vision model unavailable")
		}
		return desc, nil
	}

	if strings.Contains(req.Prompt, imageMarker) {
		g.imageIntentCalls++
	} else {
		g.textCalls++
	}
	if g.err != nil {
		return "", g.err
	}
	for needle, reply := range g.intents {
		if strings.Contains(req.Prompt, needle) {
			return reply, nil
		}
	}
	return `{"intent":"informative","reasoning":"default"}`, nil
}

func reply(intent, reasoning string) string {
	return `{"intent":"` + intent + `","reasoning":"` + reasoning + `"}`
}

func newClassifier(gen classifier.Generator) *classifier.Classifier {
	return classifier.New(gen, classifier.Config{Model: "llama3", VisionModel: "llava"})
}

func TestClassify_SupportiveText(t *testing.T) {
	gen := &fakeGenerator{intents: map[string]string{"I love Foo!": reply("supportive", "praises Foo")}}
	post := moderation.Post{URI: "at://did:plc:a/app.bsky.feed.post/1", AuthorDID: "did:plc:a", Text: "I love Foo!"}

	rec := newClassifier(gen).Classify(context.Background(), post, "Foo")

	assert.True(t, rec.IsSupportive)
	assert.Equal(t, moderation.IntentSupportive, rec.Intent)
	assert.Equal(t, moderation.SourceText, rec.Source)
	assert.Equal(t, "praises Foo", rec.Reasoning)
	assert.Equal(t, "Foo", rec.Keyword)
	assert.Equal(t, post.URI, rec.PostURI)
	assert.Equal(t, "did:plc:a", rec.AuthorDID)
	assert.Equal(t, "I love Foo!", rec.Content)
}

func TestClassify_CriticalText(t *testing.T) {
	gen := &fakeGenerator{intents: map[string]string{"Foo is terrible": reply("critical", "attacks Foo")}}
	post := moderation.Post{AuthorDID: "did:plc:a", Text: "Foo is terrible"}

	rec := newClassifier(gen).Classify(context.Background(), post, "Foo")

	assert.False(t, rec.IsSupportive)
	assert.Equal(t, moderation.IntentCritical, rec.Intent)
	assert.Equal(t, moderation.SourceText, rec.Source)
}

func TestClassify_SupportiveTextShortCircuitsImages(t *testing.T) {
	gen := &fakeGenerator{
		intents:      map[string]string{"Foo forever": reply("supportive", "x")},
		descriptions: map[string]string{"https://img/1": "a banner", "https://img/2": "a flag"},
	}
	post := moderation.Post{
		AuthorDID: "did:plc:a",
		Text:      "Foo forever",
		Images:    []string{"https://img/1", "https://img/2"},
	}

	rec := newClassifier(gen).Classify(context.Background(), post, "Foo")

	assert.True(t, rec.IsSupportive)
	assert.Empty(t, gen.describeCalls)
	assert.Zero(t, gen.imageIntentCalls)
	assert.Equal(t, 1, gen.textCalls)
}

func TestClassify_StopsAtFirstSupportiveImage(t *testing.T) {
	gen := &fakeGenerator{
		intents: map[string]string{
			"meh":          reply("critical", "text criticises"),
			"a Foo banner": reply("supportive", "image endorses"),
		},
		descriptions: map[string]string{
			"https://img/0": "a cat",
			"https://img/1": "a Foo banner",
			"https://img/2": "another Foo banner",
			"https://img/3": "a Foo banner again",
		},
	}
	post := moderation.Post{
		AuthorDID: "did:plc:a",
		Text:      "meh",
		Images:    []string{"https://img/0", "https://img/1", "https://img/2", "https://img/3"},
	}

	rec := newClassifier(gen).Classify(context.Background(), post, "Foo")

	require.True(t, rec.IsSupportive)
	assert.Equal(t, moderation.ImageSource(1), rec.Source)
	assert.Equal(t, "image endorses", rec.Reasoning)
	assert.Equal(t, 2, gen.imageIntentCalls)
	assert.Equal(t, []string{"https://img/0", "https://img/1"}, gen.describeCalls)
}

func TestClassify_FailedDescriptionIsSkipped(t *testing.T) {
	gen := &fakeGenerator{
		intents: map[string]string{"a Foo rally": reply("supportive", "rally")},
		descriptions: map[string]string{
			"https://img/1": "a Foo rally",
		},
	}
	post := moderation.Post{AuthorDID: "did:plc:a", Images: []string{"https://img/broken", "https://img/1"}}

	rec := newClassifier(gen).Classify(context.Background(), post, "Foo")

	assert.True(t, rec.IsSupportive)
	assert.Equal(t, moderation.ImageSource(1), rec.Source)
	assert.Equal(t, 1, gen.imageIntentCalls)
	assert.Len(t, gen.describeCalls, 2)
}

func TestClassify_ReturnsLastNonSupportiveRecord(t *testing.T) {
	gen := &fakeGenerator{
		intents: map[string]string{
			"Foo news":  reply("informative", "reports"),
			"a diagram": reply("critical", "mocking chart"),
		},
		descriptions: map[string]string{"https://img/0": "a diagram"},
	}
	post := moderation.Post{AuthorDID: "did:plc:a", Text: "Foo news", Images: []string{"https://img/0", "https://img/broken"}}

	rec := newClassifier(gen).Classify(context.Background(), post, "Foo")

	assert.False(t, rec.IsSupportive)
	assert.Equal(t, moderation.IntentCritical, rec.Intent)
	assert.Equal(t, moderation.ImageSource(0), rec.Source)
	assert.Equal(t, "mocking chart", rec.Reasoning)
}

func TestClassify_NoAnalysisWhenEverySignalFails(t *testing.T) {
	gen := &fakeGenerator{}
	post := moderation.Post{AuthorDID: "did:plc:a", Images: []string{"https://img/broken"}}

	rec := newClassifier(gen).Classify(context.Background(), post, "Foo")

	assert.False(t, rec.IsSupportive)
	assert.Equal(t, moderation.IntentUnknown, rec.Intent)
	assert.Equal(t, classifier.ReasonNoAnalysis, rec.Reasoning)
	assert.Equal(t, moderation.SourceNone, rec.Source)
	assert.Zero(t, gen.imageIntentCalls)
}

func TestClassify_UnparseableOutputIsUnknown(t *testing.T) {
	gen := &fakeGenerator{intents: map[string]string{"hello": "not json"}}
	post := moderation.Post{AuthorDID: "did:plc:a", Text: "hello"}

	var rec moderation.Record
	assert.NotPanics(t, func() {
		rec = newClassifier(gen).Classify(context.Background(), post, "Foo")
	})

	assert.Equal(t, moderation.IntentUnknown, rec.Intent)
	assert.False(t, rec.IsSupportive)
}

func TestClassify_GeneratorFailureIsUnknown(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	post := moderation.Post{AuthorDID: "did:plc:a", Text: "hello"}

	rec := newClassifier(gen).Classify(context.Background(), post, "Foo")

	assert.Equal(t, moderation.IntentUnknown, rec.Intent)
	assert.Contains(t, rec.Reasoning, "connection refused")
}

type slowGenerator struct{}

func (slowGenerator) Generate(ctx context.Context, _ classifier.GenerateRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestIntent_TimesOut(t *testing.T) {
	c := classifier.New(slowGenerator{}, classifier.Config{Model: "llama3", Timeout: 20 * time.Millisecond})

	start := time.Now()
	v := c.Intent(context.Background(), "Foo", "text", "")

	assert.Equal(t, moderation.IntentUnknown, v.Intent)
	assert.Contains(t, v.Reasoning, "deadline exceeded")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDescribe_EmptyDescriptionFails(t *testing.T) {
	gen := &fakeGenerator{descriptions: map[string]string{"https://img/blank": "   "}}

	_, err := newClassifier(gen).Describe(context.Background(), "https://img/blank")
	assert.Error(t, err)
}

func TestIntentPrompt(t *testing.T) {
	p := classifier.IntentPrompt("Foo", "I love Foo!", "")
	assert.Contains(t, p, `"Foo"`)
	assert.Contains(t, p, "Post text:\nI love Foo!")
	assert.NotContains(t, p, imageMarker)

	p = classifier.IntentPrompt("Foo", "", "a banner")
	assert.Contains(t, p, imageMarker)
	assert.NotContains(t, p, "Post text:")
}
