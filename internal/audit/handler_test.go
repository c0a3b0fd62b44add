package audit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blocksweep/blocksweep/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleListEvents_FiltersAndLimits(t *testing.T) {
	store := audit.NewStore(10)
	require.NoError(t, store.Write(context.Background(), []audit.Event{
		{Action: audit.ActionPostClassified, Subject: "did:plc:a"},
		{Action: audit.ActionBlocklistAdded, Subject: "did:plc:a"},
		{Action: audit.ActionPostClassified, Subject: "did:plc:b"},
	}))
	h := audit.NewHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/audit/events?action=post.classified&limit=1", nil)
	w := httptest.NewRecorder()
	h.HandleListEvents(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Events []audit.Event `json:"events"`
		Count  int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "did:plc:b", body.Events[0].Subject)
}

func TestHandleListEvents_NilStore(t *testing.T) {
	h := audit.NewHandler(nil)

	w := httptest.NewRecorder()
	h.HandleListEvents(w, httptest.NewRequest(http.MethodGet, "/api/audit/events", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"events":[],"count":0}`, w.Body.String())
}
