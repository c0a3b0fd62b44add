package decision

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/blocksweep/blocksweep/internal/audit"
	"github.com/blocksweep/blocksweep/internal/moderation"
)

// Handler serves result and override endpoints.
type Handler struct {
	store *Store
	audit audit.Logger
}

// NewHandler creates a decision handler.
func NewHandler(store *Store, auditLogger audit.Logger) *Handler {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Handler{store: store, audit: auditLogger}
}

// HandleResults returns the current session partitioned by outcome.
// GET /api/results
func (h *Handler) HandleResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session":    h.store.Session(),
		"supportive": h.store.ListSupportive(),
		"oppose":     h.store.ListOpposing(),
	})
}

// HandleOverride flips a post's supportive flag by hand.
// POST /api/override
func (h *Handler) HandleOverride(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<10)

	var req struct {
		PostURI      *string `json:"postUri"`
		IsSupportive *bool   `json:"isSupportive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.PostURI == nil || req.IsSupportive == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "postUri and isSupportive required"})
		return
	}

	rec, err := h.store.Override(*req.PostURI, *req.IsSupportive)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPostURI):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot parse postUri"})
		case errors.Is(err, ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "override failed"})
		}
		return
	}

	slog.Info("decision overridden", "post_uri", rec.PostURI, "is_supportive", rec.IsSupportive)
	h.audit.Log(r.Context(), overrideEvent(h.store.Session(), rec))

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "record": rec})
}

func overrideEvent(sess Session, rec moderation.Record) audit.Event {
	return audit.Event{
		Action:  audit.ActionDecisionOverridden,
		ScanID:  sess.ID.String(),
		Subject: rec.AuthorDID,
		PostURI: rec.PostURI,
		Keyword: rec.Keyword,
		Metadata: map[string]any{
			audit.MetadataSupportive: rec.IsSupportive,
			audit.MetadataIntent:     string(rec.Intent),
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
