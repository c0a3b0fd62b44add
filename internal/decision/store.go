// Package decision owns the per-scan table of classification records.
package decision

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blocksweep/blocksweep/internal/atproto"
	"github.com/blocksweep/blocksweep/internal/moderation"
	"github.com/google/uuid"
)

// OverrideReasoning replaces the model's reasoning on a manual override.
const OverrideReasoning = "(Manually overridden by user.)"

var (
	ErrNotFound       = errors.New("post not found in current scan results")
	ErrInvalidPostURI = errors.New("cannot parse post uri")
)

// Session identifies one scan's worth of records.
type Session struct {
	ID        uuid.UUID `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

// Store is the in-memory decision table. Records are valid from one
// BeginSession to the next.
type Store struct {
	mu      sync.RWMutex
	session Session
	records map[moderation.PostID]*moderation.Record
	order   []moderation.PostID
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[moderation.PostID]*moderation.Record)}
}

// BeginSession discards every record and starts a new session.
func (s *Store) BeginSession() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = Session{ID: uuid.New(), StartedAt: time.Now().UTC()}
	s.records = make(map[moderation.PostID]*moderation.Record)
	s.order = nil
	return s.session
}

// Session returns the current session; zero before the first scan.
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Record upserts the record for id. The last write wins; the first write
// fixes the listing position.
func (s *Store) Record(id moderation.PostID, rec moderation.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		s.order = append(s.order, id)
	}
	r := rec
	s.records[id] = &r
}

// Get returns the record stored for id.
func (s *Store) Get(id moderation.PostID) (moderation.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return moderation.Record{}, false
	}
	return *r, true
}

// Len reports the number of records in the current session.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ListSupportive returns the supportive records in insertion order.
func (s *Store) ListSupportive() []moderation.Record {
	return s.list(true)
}

// ListOpposing returns every non-supportive record in insertion order.
func (s *Store) ListOpposing() []moderation.Record {
	return s.list(false)
}

func (s *Store) list(supportive bool) []moderation.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []moderation.Record{}
	for _, id := range s.order {
		if r := s.records[id]; r.IsSupportive == supportive {
			out = append(out, *r)
		}
	}
	return out
}

// SupportiveAuthors returns the distinct authors of supportive records.
func (s *Store) SupportiveAuthors() []string {
	seen := make(map[string]bool)
	var authors []string
	for _, r := range s.ListSupportive() {
		if r.AuthorDID == "" || seen[r.AuthorDID] {
			continue
		}
		seen[r.AuthorDID] = true
		authors = append(authors, r.AuthorDID)
	}
	return authors
}

// Override sets the supportive flag of the post at postURI by hand. Intent and
// keyword keep their computed values.
func (s *Store) Override(postURI string, supportive bool) (moderation.Record, error) {
	id, err := atproto.ParsePostURI(postURI)
	if err != nil {
		return moderation.Record{}, fmt.Errorf("%w: %q", ErrInvalidPostURI, postURI)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return moderation.Record{}, ErrNotFound
	}
	r.IsSupportive = supportive
	r.Overridden = true
	r.Reasoning = OverrideReasoning
	return *r, nil
}
