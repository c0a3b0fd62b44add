package audit

import (
	"context"
	"log/slog"
	"sync"
)

// Store keeps the most recent events in memory. It does not survive restarts.
type Store struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

// NewStore creates a Store holding at most size events.
func NewStore(size int) *Store {
	if size <= 0 {
		size = 1000
	}
	return &Store{events: make([]Event, size)}
}

// Write appends a batch, overwriting the oldest events once full.
func (s *Store) Write(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		s.events[s.next] = e
		s.next = (s.next + 1) % len(s.events)
		if s.next == 0 {
			s.full = true
		}
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.next
	if s.full {
		n = len(s.events)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Event, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (s.next - 1 - i + len(s.events)) % len(s.events)
		out = append(out, s.events[idx])
	}
	return out
}

// LogSink writes each event as a structured log entry.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Write(ctx context.Context, events []Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, e := range events {
		attrs := []slog.Attr{
			slog.String("audit_id", e.ID.String()),
			slog.String("action", e.Action),
			slog.String("source", e.Source),
		}
		if e.ScanID != "" {
			attrs = append(attrs, slog.String("scan_id", e.ScanID))
		}
		if e.Subject != "" {
			attrs = append(attrs, slog.String("subject", e.Subject))
		}
		if e.PostURI != "" {
			attrs = append(attrs, slog.String("post_uri", e.PostURI))
		}
		if e.Keyword != "" {
			attrs = append(attrs, slog.String("keyword", e.Keyword))
		}
		if len(e.Metadata) > 0 {
			attrs = append(attrs, slog.Any("metadata", e.Metadata))
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	}
	return nil
}
