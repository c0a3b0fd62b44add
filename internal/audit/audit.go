// Package audit records the decision trail of scans, overrides and blocklist
// changes.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event represents a single auditable action in the system.
type Event struct {
	ID       uuid.UUID      `json:"id"`
	Time     time.Time      `json:"time"`
	Action   string         `json:"action"`
	ScanID   string         `json:"scan_id,omitempty"`
	Subject  string         `json:"subject,omitempty"`
	PostURI  string         `json:"post_uri,omitempty"`
	Keyword  string         `json:"keyword,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Source   string         `json:"source"`
}

const (
	ActionScanStarted    = "scan.started"
	ActionScanCompleted  = "scan.completed"
	ActionScanAborted    = "scan.aborted"
	ActionPostSkipped    = "post.skipped"
	ActionPostClassified = "post.classified"

	ActionDecisionOverridden = "decision.overridden"

	ActionBlocklistAdded        = "blocklist.added"
	ActionBlocklistAddFailed    = "blocklist.add_failed"
	ActionBlocklistRemoved      = "blocklist.removed"
	ActionBlocklistRemoveFailed = "blocklist.remove_failed"
	ActionBlocklistRunCompleted = "blocklist.run_completed"
)

const (
	MetadataIntent     = "intent"
	MetadataSupportive = "is_supportive"
	MetadataReasoning  = "reasoning"
	MetadataSignal     = "signal"
	MetadataError      = "error"
	MetadataAttempted  = "attempted"
	MetadataSucceeded  = "succeeded"
)

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// NopLogger is a no-op audit logger for testing and when audit is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }

type sourceKey struct{}

// WithSource tags ctx with the surface that triggered the work.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the tagged source, or "system".
func SourceFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "system"
}
