package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(&Config{BaseURL: srv.URL, APIKey: "tok", RetryCount: 1}), srv
}

func TestGetManifestDecodesLevels(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/manifest", r.URL.Path)
		assert.Equal(t, "ks.tbl", r.URL.Query().Get("table"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"levels": []ManifestLevel{{Level: 0, FileCount: 2, SizeBytes: 100}},
		})
	})

	levels, err := c.GetManifest(context.Background(), "ks.tbl")
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, 2, levels[0].FileCount)
}

func TestTriggerCompactionDecodesResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(CompactionResult{TaskID: "t-1", Status: "scheduled", TargetLevel: 1, Inputs: 4})
	})

	res, err := c.TriggerCompaction(context.Background(), "ks.tbl")
	require.NoError(t, err)
	assert.Equal(t, "t-1", res.TaskID)
	assert.Equal(t, 1, res.TargetLevel)
}

func TestStartRepairPostsBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions", r.URL.Path)
		var req StartRepairRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ks", req.Keyspace)
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(RepairSessionView{ID: "sess-1", State: "new"})
	})

	view, err := c.StartRepair(context.Background(), StartRepairRequest{Keyspace: "ks", Tables: []string{"tbl"}})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", view.ID)
}

func TestRepairStatusAndTerminate(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(RepairSessionView{ID: "sess-1", State: "done"})
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusOK)
		}
	})

	view, err := c.RepairStatus(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "done", view.State)

	require.NoError(t, c.TerminateRepair(context.Background(), "sess-1"))
}

func TestDoRequestSurfacesOperatorErrorBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errorResponse{Error: "repair session not found: sess-1"})
	})

	_, err := c.RepairStatus(context.Background(), "sess-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repair session not found")
}

func TestDoRequestFailsAfterExhaustingRetriesOnTransportError(t *testing.T) {
	c := New(&Config{BaseURL: "http://127.0.0.1:0", RetryCount: 1})
	_, err := c.GetManifest(context.Background(), "ks.tbl")
	assert.Error(t, err)
}
