package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Handler serves audit query endpoints.
type Handler struct {
	store *Store
}

// NewHandler creates an audit query handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// HandleListEvents returns recent audit events, newest first.
// GET /api/audit/events?limit=50&action=post.classified
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	action := r.URL.Query().Get("action")

	if h.store == nil {
		writeAuditJSON(w, http.StatusOK, map[string]any{"events": []Event{}, "count": 0})
		return
	}

	events := []Event{}
	for _, e := range h.store.Recent(0) {
		if action != "" && e.Action != action {
			continue
		}
		events = append(events, e)
		if len(events) == limit {
			break
		}
	}

	writeAuditJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func writeAuditJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
