// Package moderation holds the data contracts shared by the scan, decision
// and blocklist components.
package moderation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuth marks a missing, rejected or expired session. It aborts the
	// whole top-level operation.
	ErrAuth = errors.New("authentication failed")
	// ErrInvalidPost marks a post that cannot be admitted to classification.
	ErrInvalidPost = errors.New("invalid post")
)

// Intent is the stance a post takes toward a keyword.
type Intent string

const (
	IntentSupportive  Intent = "supportive"
	IntentCritical    Intent = "critical"
	IntentInformative Intent = "informative"
	IntentUnknown     Intent = "unknown"
)

// NormalizeIntent trims and lowercases a model-produced intent. Anything outside
// the three known categories becomes IntentUnknown.
func NormalizeIntent(raw string) Intent {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "supportive":
		return IntentSupportive
	case "critical":
		return IntentCritical
	case "informative", "reporting", "informative/reporting":
		return IntentInformative
	default:
		return IntentUnknown
	}
}

// Source names the signal a record was computed from.
type Source string

const (
	SourceText Source = "text"
	SourceNone Source = "none"
)

// ImageSource returns the source tag for the k-th (0-based) image of a post.
func ImageSource(k int) Source {
	return Source(fmt.Sprintf("image#%d", k))
}

// PostID identifies a post within a scan session.
type PostID struct {
	AuthorDID string
	RecordKey string
}

func (id PostID) String() string {
	return id.AuthorDID + "|" + id.RecordKey
}

// Post is a search result validated at the transport boundary.
type Post struct {
	URI          string   `json:"uri"`
	AuthorDID    string   `json:"authorDid"`
	AuthorHandle string   `json:"authorHandle,omitempty"`
	Text         string   `json:"text,omitempty"`
	Images       []string `json:"images,omitempty"`
}

// ID derives the post identity from the author and the URI's record key.
func (p Post) ID() PostID {
	return PostID{AuthorDID: p.AuthorDID, RecordKey: RecordKey(p.URI)}
}

// HasText reports whether the post carries non-blank text.
func (p Post) HasText() bool {
	return strings.TrimSpace(p.Text) != ""
}

// Validate enforces the admission rule: an author and at least one of text or
// images.
func (p Post) Validate() error {
	if p.AuthorDID == "" {
		return fmt.Errorf("%w: missing author", ErrInvalidPost)
	}
	if !p.HasText() && len(p.Images) == 0 {
		return fmt.Errorf("%w: no text or images", ErrInvalidPost)
	}
	return nil
}

// RecordKey returns the final path segment of a resource URI.
func RecordKey(uri string) string {
	uri = strings.TrimRight(uri, "/")
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// Record is the classification outcome for one post.
type Record struct {
	Keyword      string `json:"keyword"`
	Intent       Intent `json:"intent"`
	IsSupportive bool   `json:"is_supportive"`
	Reasoning    string `json:"reasoning"`
	Source       Source `json:"source"`
	Overridden   bool   `json:"overridden"`
	PostURI      string `json:"post_uri"`
	AuthorDID    string `json:"authorDid"`
	Content      string `json:"content"`
}

// BlockOutcome aggregates a block or unblock run. Per-item failures are only
// visible in the logs.
type BlockOutcome struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
}
