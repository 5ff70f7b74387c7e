package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradecopy/relayd/internal/metrics"
	"github.com/tradecopy/relayd/internal/publisher"
	"github.com/tradecopy/relayd/internal/registry"
	"github.com/tradecopy/relayd/internal/store"
	"github.com/tradecopy/relayd/internal/transport"
	"github.com/tradecopy/relayd/internal/updater"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	dir, err := os.MkdirTemp("", "relayd-httpapi-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	st, err := store.New(store.Config{DataDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m := metrics.New()
	pub := transport.NewPubServer("127.0.0.1:0", m)
	require.NoError(t, pub.Start())
	t.Cleanup(func() { pub.Stop() })
	go pub.Run()

	reg := registry.New()
	pubComponent := publisher.New(st, pub, m)
	hub := NewHub()
	go hub.Run()
	u := updater.New(reg, st, pubComponent, hub, m)

	return New(reg, st, u, hub, m, []string{"*"}), st
}

func TestHealthzAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTradeGroupCRUDOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	createBody, _ := json.Marshal(createTradeGroupRequest{MasterAccountID: "M1"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/trade-groups", bytes.NewReader(createBody)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"ID"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trade-groups/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	updateBody, _ := json.Marshal(updateTradeGroupRequest{EnabledFlag: false, SymbolPrefix: "", SymbolSuffix: ".m"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/trade-groups/"+created.ID, bytes.NewReader(updateBody)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/trade-groups/"+created.ID, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMemberCRUDOverHTTP(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler()

	g, err := st.CreateTradeGroup("M1", time.Now().Unix())
	require.NoError(t, err)

	createBody, _ := json.Marshal(map[string]any{
		"slave_account_id": "S1",
		"enabled_flag":     true,
		"sync_policy":      "full",
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/trade-groups/"+g.ID+"/members", bytes.NewReader(createBody)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	toggleBody, _ := json.Marshal(toggleMemberRequest{EnabledFlag: false})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/trade-groups/"+g.ID+"/members/S1/toggle", bytes.NewReader(toggleBody)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trade-groups/"+g.ID+"/members", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/trade-groups/"+g.ID+"/members/S1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
