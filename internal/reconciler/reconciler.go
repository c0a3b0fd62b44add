// Package reconciler applies accepted decisions to the account's moderation
// list and clears it on request.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blocksweep/blocksweep/internal/atproto"
	"github.com/blocksweep/blocksweep/internal/audit"
	"github.com/blocksweep/blocksweep/internal/moderation"
	"github.com/blocksweep/blocksweep/internal/platform/telemetry"
)

// ErrNoBlocklist is returned when no moderation list is configured.
var ErrNoBlocklist = errors.New("no blocklist configured")

// Blocklist is the list-item surface of the account's repository.
type Blocklist interface {
	CreateListItem(ctx context.Context, sess *atproto.Session, listURI, subject string) (string, error)
	GetListItems(ctx context.Context, sess *atproto.Session, listURI string, limit int) ([]atproto.ListItem, error)
	DeleteListItem(ctx context.Context, sess *atproto.Session, rkey string) error
}

// Config configures the Reconciler.
type Config struct {
	BlocklistURI    string // at://<did>/app.bsky.graph.list/<rkey>
	MembershipLimit int    // single page, default 100
	Audit           audit.Logger
	Metrics         *telemetry.Metrics
}

// Reconciler adds and removes blocklist members. Items are processed one at a
// time; a failed item is counted and logged, never retried.
type Reconciler struct {
	list Blocklist
	cfg  Config
}

// New creates a Reconciler.
func New(list Blocklist, cfg Config) *Reconciler {
	if cfg.MembershipLimit <= 0 || cfg.MembershipLimit > atproto.MaxPageSize {
		cfg.MembershipLimit = atproto.MaxPageSize
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NopLogger{}
	}
	return &Reconciler{list: list, cfg: cfg}
}

// BlocklistURI returns the configured list, empty when unset.
func (r *Reconciler) BlocklistURI() string { return r.cfg.BlocklistURI }

// BlockUsers adds every non-empty author id to the blocklist.
func (r *Reconciler) BlockUsers(ctx context.Context, sess *atproto.Session, authorIDs []string) (moderation.BlockOutcome, error) {
	var out moderation.BlockOutcome
	if err := r.precheck(sess); err != nil {
		return out, err
	}

	for _, did := range authorIDs {
		if did == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		out.Attempted++
		uri, err := r.list.CreateListItem(ctx, sess, r.cfg.BlocklistURI, did)
		if err != nil {
			r.cfg.Metrics.ObserveBlocklistOp("add", false)
			if errors.Is(err, moderation.ErrAuth) {
				return out, r.aborted(ctx, "add", out, err)
			}
			slog.Error("failed to block user", "subject", did, "error", err)
			r.cfg.Audit.Log(ctx, audit.Event{
				Action:   audit.ActionBlocklistAddFailed,
				Subject:  did,
				Metadata: map[string]any{audit.MetadataError: err.Error()},
			})
			continue
		}

		out.Succeeded++
		r.cfg.Metrics.ObserveBlocklistOp("add", true)
		slog.Info("blocked user", "subject", did, "item_uri", uri)
		r.cfg.Audit.Log(ctx, audit.Event{
			Action:   audit.ActionBlocklistAdded,
			Subject:  did,
			Metadata: map[string]any{"item_uri": uri},
		})
	}

	r.completed(ctx, "add", out)
	return out, nil
}

// UnblockAll removes every member of the first membership page.
func (r *Reconciler) UnblockAll(ctx context.Context, sess *atproto.Session) (moderation.BlockOutcome, error) {
	var out moderation.BlockOutcome
	if err := r.precheck(sess); err != nil {
		return out, err
	}

	items, err := r.list.GetListItems(ctx, sess, r.cfg.BlocklistURI, r.cfg.MembershipLimit)
	if err != nil {
		return out, fmt.Errorf("reading blocklist membership: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		out.Attempted++
		if err := r.list.DeleteListItem(ctx, sess, item.RecordKey()); err != nil {
			r.cfg.Metrics.ObserveBlocklistOp("remove", false)
			if errors.Is(err, moderation.ErrAuth) {
				return out, r.aborted(ctx, "remove", out, err)
			}
			slog.Error("failed to unblock user", "subject", item.SubjectDID, "item_uri", item.URI, "error", err)
			r.cfg.Audit.Log(ctx, audit.Event{
				Action:   audit.ActionBlocklistRemoveFailed,
				Subject:  item.SubjectDID,
				Metadata: map[string]any{audit.MetadataError: err.Error()},
			})
			continue
		}

		out.Succeeded++
		r.cfg.Metrics.ObserveBlocklistOp("remove", true)
		slog.Info("unblocked user", "subject", item.SubjectDID)
		r.cfg.Audit.Log(ctx, audit.Event{
			Action:  audit.ActionBlocklistRemoved,
			Subject: item.SubjectDID,
		})
	}

	r.completed(ctx, "remove", out)
	return out, nil
}

func (r *Reconciler) precheck(sess *atproto.Session) error {
	if r.cfg.BlocklistURI == "" {
		return ErrNoBlocklist
	}
	return atproto.CheckSession(sess)
}

func (r *Reconciler) aborted(ctx context.Context, op string, out moderation.BlockOutcome, cause error) error {
	slog.Error("blocklist run aborted", "op", op, "attempted", out.Attempted, "succeeded", out.Succeeded, "error", cause)
	r.cfg.Audit.Log(ctx, audit.Event{
		Action: audit.ActionBlocklistRunCompleted,
		Metadata: map[string]any{
			"op":                    op,
			audit.MetadataAttempted: out.Attempted,
			audit.MetadataSucceeded: out.Succeeded,
			audit.MetadataError:     cause.Error(),
		},
	})
	return fmt.Errorf("blocklist %s aborted: %w", op, cause)
}

func (r *Reconciler) completed(ctx context.Context, op string, out moderation.BlockOutcome) {
	slog.Info("blocklist run complete", "op", op, "attempted", out.Attempted, "succeeded", out.Succeeded)
	r.cfg.Audit.Log(ctx, audit.Event{
		Action: audit.ActionBlocklistRunCompleted,
		Metadata: map[string]any{
			"op":                    op,
			audit.MetadataAttempted: out.Attempted,
			audit.MetadataSucceeded: out.Succeeded,
		},
	})
}
