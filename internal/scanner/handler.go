package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/blocksweep/blocksweep/internal/atproto"
	"github.com/blocksweep/blocksweep/internal/moderation"
)

// Authenticator opens a fresh account session.
type Authenticator interface {
	CreateSession(ctx context.Context) (*atproto.Session, error)
}

// Handler serves the scan trigger endpoint.
type Handler struct {
	scanner  *Scanner
	auth     Authenticator
	keywords []string
}

// NewHandler creates a scan handler over a fixed keyword list.
func NewHandler(s *Scanner, auth Authenticator, keywords []string) *Handler {
	return &Handler{scanner: s, auth: auth, keywords: keywords}
}

// HandleRunScan authenticates and runs one scan synchronously. A request made
// while a scan is running is rejected before logging in.
// POST /api/run-scan
func (h *Handler) HandleRunScan(w http.ResponseWriter, r *http.Request) {
	if h.scanner.Busy() {
		writeError(w, ErrScanInProgress)
		return
	}

	sess, err := h.auth.CreateSession(r.Context())
	if err != nil {
		slog.Error("authentication failed", "error", err)
		writeError(w, err)
		return
	}

	res, err := h.scanner.Run(r.Context(), sess, h.keywords)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrScanInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, moderation.ErrAuth), errors.Is(err, atproto.ErrMissingCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication failed"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scan failed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
