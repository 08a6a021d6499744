package operator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ringstore/internal/auth"
	"ringstore/internal/common"
	"ringstore/internal/config"
	"ringstore/internal/failuredetector"
	"ringstore/internal/manifest"
	"ringstore/internal/repair"
	"ringstore/internal/sstable"
	"ringstore/internal/sstable/parquet"
	"ringstore/internal/token"
	"ringstore/internal/wire"
)

type fakeTable struct {
	id    common.FileID
	level int
	first token.DecoratedKey
	last  token.DecoratedKey
	size  int64
}

func (f *fakeTable) ID() common.FileID             { return f.id }
func (f *fakeTable) Level() int                    { return f.level }
func (f *fakeTable) FirstKey() token.DecoratedKey   { return f.first }
func (f *fakeTable) LastKey() token.DecoratedKey    { return f.last }
func (f *fakeTable) UncompressedLength() int64      { return f.size }
func (f *fakeTable) Open(ctx context.Context, r *token.AbstractBounds) (sstable.Scanner, error) {
	return nil, nil
}

func newFakeTable(id string, tok byte) *fakeTable {
	key := token.DecoratedKey{Token: token.Token{tok}, Key: []byte(id)}
	return &fakeTable{id: common.FileID(id), level: sstable.UnplacedLevel, first: key, last: key, size: 1024}
}

func newAuthedServer(t *testing.T) (*Server, string) {
	t.Helper()
	secret := []byte("test-secret")
	authenticator := auth.NewJWTAuthenticator(secret, "ringstore-test")
	tokens := auth.NewTokenManager(secret, "ringstore-test", time.Hour)
	jwtToken, err := tokens.GenerateJWT("op-1", []string{"*"})
	require.NoError(t, err)

	m := manifest.New(4096, 4)
	pool := manifest.NewPool(m, nil, common.TableID{Keyspace: "ks", Table: "tbl"}, 1, 4096, parquet.DefaultWriterConfig())

	registry := NewSessionRegistry(
		fakeTreeRequester{},
		fakeSnapshotRequester{},
		fakeDetectorAllAlive{},
		func(string) repair.Streamer { return fakeStreamer{} },
		config.RepairConfig{MaxConcurrentSessions: 4, ConvictThreshold: 8, ConvictMultiplier: 2},
	)

	srv := NewServer(auth.NewAuthMiddleware(authenticator), map[string]TableHandle{
		"ks.tbl": {Manifest: m, Pool: pool},
	}, registry)

	return srv, jwtToken
}

type fakeTreeRequester struct{}

func (fakeTreeRequester) SendTreeRequest(ctx context.Context, endpoint string, req wire.TreeRequest) error {
	return nil
}

type fakeSnapshotRequester struct{}

func (fakeSnapshotRequester) SendSnapshotCommand(ctx context.Context, endpoint string, cmd wire.SnapshotCommand) error {
	return nil
}

type fakeStreamer struct{}

func (fakeStreamer) Stream(ctx context.Context, req wire.SyncRequest) error { return nil }

type fakeDetectorAllAlive struct{}

func (fakeDetectorAllAlive) IsAlive(endpoint string) bool { return true }
func (fakeDetectorAllAlive) Phi(endpoint string) float64  { return 0 }
func (fakeDetectorAllAlive) Subscribe() <-chan failuredetector.ConvictionEvent {
	return make(chan failuredetector.ConvictionEvent)
}

func TestHealthIsUnauthenticated(t *testing.T) {
	srv, _ := newAuthedServer(t)
	r := srv.SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	srv, _ := newAuthedServer(t)
	r := srv.SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/manifest?table=ks.tbl", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetManifestReturnsLevels(t *testing.T) {
	srv, jwtToken := newAuthedServer(t)
	r := srv.SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/manifest?table=ks.tbl", nil)
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Levels []levelSummary `json:"levels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
}

func TestRunCompactionWithNothingToCompact(t *testing.T) {
	srv, jwtToken := newAuthedServer(t)
	r := srv.SetupRoutes()

	req := httptest.NewRequest(http.MethodPost, "/compact?table=ks.tbl", nil)
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nothing to compact")
}

func TestRunCompactionSchedulesTask(t *testing.T) {
	srv, jwtToken := newAuthedServer(t)
	handle, ok := srv.tableHandle("ks.tbl")
	require.True(t, ok)
	for i := 0; i < 4; i++ {
		handle.Manifest.Add(newFakeTable("sst-"+string(rune('a'+i)), byte(i*10)))
	}
	r := srv.SetupRoutes()

	req := httptest.NewRequest(http.MethodPost, "/compact?table=ks.tbl", nil)
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "task_id")
}

func TestCreateGetTerminateSession(t *testing.T) {
	srv, jwtToken := newAuthedServer(t)
	r := srv.SetupRoutes()

	body := `{"id":"sess-1","keyspace":"ks","tables":["tbl"],"lower":[0],"upper":[255],"endpoints":[]}`
	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/sessions/sess-1", nil)
	getReq.Header.Set("Authorization", "Bearer "+jwtToken)
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var view sessionView
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &view))
	assert.Equal(t, "done", view.State) // no endpoints: completes immediately

	termReq := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/terminate", nil)
	termReq.Header.Set("Authorization", "Bearer "+jwtToken)
	termRec := httptest.NewRecorder()
	r.ServeHTTP(termRec, termReq)
	assert.Equal(t, http.StatusOK, termRec.Code)
}
