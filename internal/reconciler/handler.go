package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blocksweep/blocksweep/internal/atproto"
	"github.com/blocksweep/blocksweep/internal/decision"
	"github.com/blocksweep/blocksweep/internal/moderation"
)

// Authenticator opens a fresh account session.
type Authenticator interface {
	CreateSession(ctx context.Context) (*atproto.Session, error)
}

// Handler serves the block and unblock endpoints.
type Handler struct {
	rec   *Reconciler
	auth  Authenticator
	store *decision.Store
}

// NewHandler creates a reconciler handler. store backs fromResults requests.
func NewHandler(rec *Reconciler, auth Authenticator, store *decision.Store) *Handler {
	return &Handler{rec: rec, auth: auth, store: store}
}

// HandleBlock adds the given authors, or the current supportive authors, to
// the blocklist.
// POST /api/block
func (h *Handler) HandleBlock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req struct {
		UserDIDs    []string `json:"userDids"`
		FromResults bool     `json:"fromResults"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ids := req.UserDIDs
	if req.FromResults {
		ids = h.store.SupportiveAuthors()
	}
	if len(ids) == 0 && !req.FromResults {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userDids or fromResults required"})
		return
	}

	sess, err := h.auth.CreateSession(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := h.rec.BlockUsers(r.Context(), sess, ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"attempted":    out.Attempted,
		"blockedCount": out.Succeeded,
	})
}

// HandleUnblockAll clears the blocklist.
// POST /api/unblock-all
func (h *Handler) HandleUnblockAll(w http.ResponseWriter, r *http.Request) {
	sess, err := h.auth.CreateSession(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := h.rec.UnblockAll(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"attempted":    out.Attempted,
		"removedCount": out.Succeeded,
	})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoBlocklist):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, moderation.ErrAuth), errors.Is(err, atproto.ErrMissingCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "blocklist update failed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
