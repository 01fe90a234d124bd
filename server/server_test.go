package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/config"
	"github.com/toppsdigital/cardsync/gateway"
	"github.com/toppsdigital/cardsync/pipeline"
	"github.com/toppsdigital/cardsync/query"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Server {
	t.Helper()

	backend := httptest.NewServer(handler)
	t.Cleanup(backend.Close)

	cfg := config.Default()
	cfg.Polling.JobIntervalMS = 20
	cfg.Polling.JobsListIntervalMS = 20
	cfg.Server.AllowedOrigins = nil

	gw := gateway.NewClientWithHTTP(backend.URL, backend.Client())
	engine := query.NewEngine(gw, cache.NewStore(), cfg)
	t.Cleanup(engine.Stop)

	s := New(engine, engine.Dispatcher(gw), cfg)
	s.wg.Add(1)
	go s.run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func dialWebSocket(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	ws := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	t.Cleanup(ws.Close)

	url := "ws" + strings.TrimPrefix(ws.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWatchPushesCacheUpdates(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pipeline.Job{JobID: "JB_1", JobStatus: pipeline.StatusGenerating})
	})
	conn := dialWebSocket(t, s)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":     "watch",
		"selector": "jobDetails",
		"options":  map[string]interface{}{"job_id": "JB_1"},
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, "cache_update", msg["type"])
	assert.Equal(t, "job|JB_1", msg["key"])

	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "JB_1", data["job_id"])
	assert.Equal(t, "generating", data["job_status"])
}

func TestWatchInvalidSelectorReturnsError(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	conn := dialWebSocket(t, s)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":     "watch",
		"selector": "jobDetails",
		"options":  map[string]interface{}{},
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["error"], "job id")
}

func TestUnwatchStopsDelivery(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pipeline.Job{JobID: "JB_1", JobStatus: pipeline.StatusGenerating})
	})
	conn := dialWebSocket(t, s)

	watch := map[string]interface{}{
		"type":     "watch",
		"selector": "jobDetails",
		"options":  map[string]interface{}{"job_id": "JB_1"},
	}
	require.NoError(t, conn.WriteJSON(watch))
	readMessage(t, conn)

	watch["type"] = "unwatch"
	require.NoError(t, conn.WriteJSON(watch))

	// The engine-side watcher winds down once the last subscriber leaves.
	require.Eventually(t, func() bool {
		return s.engine.Store().Subscribers("job|JB_1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCheckOrigin(t *testing.T) {
	cfg := config.Default()
	cfg.Server.AllowedOrigins = []string{"https://console.example.com"}
	s := New(nil, nil, cfg)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://console.example.com")
	assert.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, s.checkOrigin(req))

	// No Origin header: non-browser client, allowed.
	req.Header.Del("Origin")
	assert.True(t, s.checkOrigin(req))
}
