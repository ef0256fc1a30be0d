package edge

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/meditation/server/internal/observability"
	"github.com/hrygo/meditation/server/offline"
	"github.com/hrygo/meditation/store"
	"github.com/hrygo/meditation/store/db/memory"
)

// switchable fails every request while down is set.
type switchable struct {
	down atomic.Bool
}

func (s *switchable) RoundTrip(req *http.Request) (*http.Response, error) {
	if s.down.Load() {
		return nil, errors.New("connection refused")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func newEdge(t *testing.T) (*echo.Echo, *switchable, *offline.Registry) {
	t.Helper()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Forwarded-Seen", r.Header.Get("X-Forwarded-Host"))
		_, _ = io.WriteString(w, "origin "+r.URL.Path)
	}))
	t.Cleanup(origin.Close)
	u, err := url.Parse(origin.URL)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.New(memory.NewDB(), nil)
	t.Cleanup(func() { s.Close() })
	network := &switchable{}
	registry := offline.NewRegistry(s, network, offline.WithLogger(logger), offline.WithMetrics(observability.NewMetrics()))
	_, err = registry.Deploy(context.Background(), offline.DefaultConfig(u))
	require.NoError(t, err)

	e := echo.New()
	NewService(u, registry, network, logger).Register(e)
	return e, network, registry
}

func get(e *echo.Echo, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestEdgeProxiesPassThrough(t *testing.T) {
	e, _, _ := newEdge(t)

	rec := get(e, "/api/sessions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "origin /api/sessions", rec.Body.String())
	assert.Equal(t, "example.com", rec.Header().Get("X-Forwarded-Seen"))
}

func TestEdgeServesFromCacheWhileOriginIsDown(t *testing.T) {
	e, network, registry := newEdge(t)
	rec := get(e, "/music/meditation-background-434654.mp3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	registry.Flush()

	network.down.Store(true)

	rec = get(e, "/src/App.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "origin /src/App.css", rec.Body.String())

	rec = get(e, "/sessions/3", map[string]string{"Sec-Fetch-Mode": "navigate"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "origin /index.html", rec.Body.String())

	rec = get(e, "/videos/unknown.mp4", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, offline.VideoUnavailable, rec.Body.String())

	rec = get(e, "/api/sessions", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
