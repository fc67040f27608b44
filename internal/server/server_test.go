package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/formbot/internal/core/config"
)

func testConfig() config.ServerConfig {
	cfg := config.DefaultConfig().Server
	cfg.RateLimit = 1000
	cfg.RateBurst = 1000
	return cfg
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer_RootAndTest(t *testing.T) {
	srv := New(testConfig(), nil, nil, nil)
	srv.now = func() time.Time { return time.Date(2024, time.June, 13, 10, 0, 0, 0, time.UTC) }
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "formbot is running", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/test")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","time":"2024-06-13T10:00:00Z"}`, rec.Body.String())
}

func TestServer_Status(t *testing.T) {
	status := func(context.Context) (any, error) {
		return map[string]int{"forms": 2, "channels": 1}, nil
	}
	h := New(testConfig(), nil, status, nil).Handler()

	rec := do(t, h, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"forms":2,"channels":1}`, rec.Body.String())
}

func TestServer_StatusFailure(t *testing.T) {
	status := func(context.Context) (any, error) { return nil, errors.New("db locked") }
	h := New(testConfig(), nil, status, nil).Handler()

	rec := do(t, h, http.MethodGet, "/status")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "status unavailable", body["message"])
	assert.NotContains(t, rec.Body.String(), "db locked")
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "formbot_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	h := New(testConfig(), nil, nil, reg).Handler()

	rec := do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "formbot_test_total 1")
}

func TestServer_MetricsDisabled(t *testing.T) {
	h := New(testConfig(), nil, nil, nil).Handler()
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/metrics").Code)
}

func TestServer_EventsRoute(t *testing.T) {
	called := false
	events := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	})
	h := New(testConfig(), events, nil, nil).Handler()

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/slack/events").Code)
	assert.False(t, called)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader("{}")))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, called)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 2
	h := New(cfg, nil, nil, nil).Handler()

	req := func(ip string) int {
		r := httptest.NewRequest(http.MethodGet, "/test", nil)
		r.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, req("10.0.0.1"))
	assert.Equal(t, http.StatusOK, req("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, req("10.0.0.1"))
	assert.Equal(t, http.StatusOK, req("10.0.0.2"), "limits are per client")
}

func TestServer_ListenAndServeStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	srv := New(cfg, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
