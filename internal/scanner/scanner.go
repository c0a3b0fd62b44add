// Package scanner fans configured keywords out over post search and feeds the
// admitted posts through the classifier into the decision store.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/blocksweep/blocksweep/internal/atproto"
	"github.com/blocksweep/blocksweep/internal/audit"
	"github.com/blocksweep/blocksweep/internal/decision"
	"github.com/blocksweep/blocksweep/internal/moderation"
	"github.com/blocksweep/blocksweep/internal/platform/telemetry"
	"github.com/google/uuid"
)

// ErrScanInProgress is returned when a scan is requested while one is running.
var ErrScanInProgress = errors.New("a scan is already in progress")

// Searcher returns the first page of posts for a keyword.
type Searcher interface {
	SearchPosts(ctx context.Context, sess *atproto.Session, q string, limit int) ([]moderation.Post, error)
}

// Classifier judges one post against one keyword.
type Classifier interface {
	Classify(ctx context.Context, post moderation.Post, keyword string) moderation.Record
}

// Config configures the Scanner.
type Config struct {
	SearchLimit int // page size, clamped to 1..100
	Audit       audit.Logger
	Metrics     *telemetry.Metrics
}

// Result summarises a completed scan.
type Result struct {
	ScanID     uuid.UUID `json:"scanId"`
	FoundUsers []string  `json:"foundUsers"`
	Admitted   int       `json:"admitted"`
	Skipped    int       `json:"skipped"`
}

// Scanner runs one scan at a time against a shared decision store.
type Scanner struct {
	search     Searcher
	classifier Classifier
	store      *decision.Store
	cfg        Config

	running sync.Mutex
	active  atomic.Bool
}

// New creates a Scanner.
func New(search Searcher, classifier Classifier, store *decision.Store, cfg Config) *Scanner {
	if cfg.SearchLimit <= 0 || cfg.SearchLimit > atproto.MaxPageSize {
		cfg.SearchLimit = atproto.MaxPageSize
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NopLogger{}
	}
	return &Scanner{
		search:     search,
		classifier: classifier,
		store:      store,
		cfg:        cfg,
	}
}

// Busy reports whether a scan is running.
func (s *Scanner) Busy() bool {
	return s.active.Load()
}

// Run starts a new decision session and scans every keyword in order. It
// returns the supportive authors in first-seen order. Authentication failures
// and cancellation abort the scan; records written before the abort remain.
func (s *Scanner) Run(ctx context.Context, sess *atproto.Session, keywords []string) (Result, error) {
	if !s.running.TryLock() {
		return Result{}, ErrScanInProgress
	}
	defer s.running.Unlock()
	s.active.Store(true)
	defer s.active.Store(false)

	if err := atproto.CheckSession(sess); err != nil {
		return Result{}, err
	}

	done := s.cfg.Metrics.ScanStarted()
	defer done()

	session := s.store.BeginSession()
	scanID := session.ID.String()
	res := Result{ScanID: session.ID, FoundUsers: []string{}}
	found := make(map[string]bool)

	slog.Info("scan started", "scan_id", scanID, "keywords", len(keywords))
	s.cfg.Audit.Log(ctx, audit.Event{
		Action:   audit.ActionScanStarted,
		ScanID:   scanID,
		Metadata: map[string]any{"keywords": keywords},
	})

	for _, keyword := range keywords {
		if err := ctx.Err(); err != nil {
			return res, s.abort(ctx, scanID, err)
		}

		slog.Info("searching for keyword", "scan_id", scanID, "keyword", keyword)
		posts, err := s.search.SearchPosts(ctx, sess, keyword, s.cfg.SearchLimit)
		if err != nil {
			if errors.Is(err, moderation.ErrAuth) {
				return res, s.abort(ctx, scanID, err)
			}
			slog.Error("search failed, continuing with no posts", "scan_id", scanID, "keyword", keyword, "error", err)
			posts = nil
		}

		for _, post := range posts {
			if err := ctx.Err(); err != nil {
				return res, s.abort(ctx, scanID, err)
			}

			if err := post.Validate(); err != nil {
				res.Skipped++
				s.cfg.Metrics.ObservePost("skipped")
				slog.Warn("invalid post structure, skipping", "scan_id", scanID, "post_uri", post.URI, "error", err)
				s.cfg.Audit.Log(ctx, audit.Event{
					Action:   audit.ActionPostSkipped,
					ScanID:   scanID,
					PostURI:  post.URI,
					Keyword:  keyword,
					Metadata: map[string]any{audit.MetadataError: err.Error()},
				})
				continue
			}

			res.Admitted++
			s.cfg.Metrics.ObservePost("admitted")

			rec := s.classifier.Classify(ctx, post, keyword)
			s.store.Record(post.ID(), rec)
			s.cfg.Audit.Log(ctx, classifiedEvent(scanID, rec))

			if rec.IsSupportive && !found[post.AuthorDID] {
				found[post.AuthorDID] = true
				res.FoundUsers = append(res.FoundUsers, post.AuthorDID)
			}
		}
	}

	slog.Info("scan complete", "scan_id", scanID, "found", len(res.FoundUsers),
		"admitted", res.Admitted, "skipped", res.Skipped)
	s.cfg.Audit.Log(ctx, audit.Event{
		Action: audit.ActionScanCompleted,
		ScanID: scanID,
		Metadata: map[string]any{
			"found":    len(res.FoundUsers),
			"admitted": res.Admitted,
			"skipped":  res.Skipped,
		},
	})
	return res, nil
}

func (s *Scanner) abort(ctx context.Context, scanID string, cause error) error {
	slog.Error("scan aborted", "scan_id", scanID, "error", cause)
	s.cfg.Audit.Log(context.WithoutCancel(ctx), audit.Event{
		Action:   audit.ActionScanAborted,
		ScanID:   scanID,
		Metadata: map[string]any{audit.MetadataError: cause.Error()},
	})
	return fmt.Errorf("scan %s aborted: %w", scanID, cause)
}

func classifiedEvent(scanID string, rec moderation.Record) audit.Event {
	return audit.Event{
		Action:  audit.ActionPostClassified,
		ScanID:  scanID,
		Subject: rec.AuthorDID,
		PostURI: rec.PostURI,
		Keyword: rec.Keyword,
		Metadata: map[string]any{
			audit.MetadataIntent:     string(rec.Intent),
			audit.MetadataSupportive: rec.IsSupportive,
			audit.MetadataReasoning:  rec.Reasoning,
			audit.MetadataSignal:     string(rec.Source),
		},
	}
}
