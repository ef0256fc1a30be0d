package v1

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/meditation/internal/profile"
	"github.com/hrygo/meditation/server/internal/observability"
	"github.com/hrygo/meditation/server/notify"
	"github.com/hrygo/meditation/server/offline"
	"github.com/hrygo/meditation/store"
	"github.com/hrygo/meditation/store/db/memory"
)

const testSecret = "s3cret"

type apiFixture struct {
	echo    *echo.Echo
	service *APIV1Service
	origin  *httptest.Server
	cfg     offline.Config
}

func newAPIFixture(t *testing.T, secret string) *apiFixture {
	t.Helper()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "asset "+r.URL.Path)
	}))
	t.Cleanup(origin.Close)
	u, err := url.Parse(origin.URL)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := &profile.Profile{Mode: "dev", RateLimit: 1000, RateBurst: 1000, AdminSecret: secret}
	s := store.New(memory.NewDB(), p)
	t.Cleanup(func() { s.Close() })

	metrics := observability.NewMetrics()
	hub := notify.NewHub(logger)
	registry := offline.NewRegistry(s, http.DefaultTransport,
		offline.WithLogger(logger), offline.WithMetrics(metrics), offline.WithClients(hub))

	cfg := offline.DefaultConfig(u)
	svc := NewAPIV1Service(p, s, registry, hub, func() (offline.Config, error) { return cfg, nil })
	svc.Metrics = metrics
	svc.Notify = notify.NewService(hub, hub, logger)

	e := echo.New()
	svc.Register(e)
	return &apiFixture{echo: e, service: svc, origin: origin, cfg: cfg}
}

func (f *apiFixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if strings.HasPrefix(body, "{") {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := GenerateAdminToken(testSecret, time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

func TestAdminToken(t *testing.T) {
	token := adminToken(t)
	assert.NoError(t, ParseAdminToken(testSecret, token))
	assert.Error(t, ParseAdminToken("other", token))

	expired, err := GenerateAdminToken(testSecret, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Error(t, ParseAdminToken(testSecret, expired))

	_, err = GenerateAdminToken("", time.Hour, time.Now())
	assert.Error(t, err)
}

func TestLifecycleRequiresToken(t *testing.T) {
	f := newAPIFixture(t, testSecret)

	rec := f.do(t, http.MethodPost, "/api/v1/lifecycle/install", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"code":"UNAUTHORIZED","message":"bearer token required"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/lifecycle/install", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInstallAndStatus(t *testing.T) {
	f := newAPIFixture(t, testSecret)

	rec := f.do(t, http.MethodPost, "/api/v1/lifecycle/install", "", adminToken(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var version VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &version))
	assert.Equal(t, VersionResponse{Version: offline.DefaultVersion, State: "active"}, version)

	rec = f.do(t, http.MethodGet, "/api/v1/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "active", status.State)
	assert.Equal(t, offline.DefaultVersion, status.Versions.Active)
	require.Len(t, status.Namespaces, 1)
	assert.Equal(t, offline.DefaultStaticCache, status.Namespaces[0].Name)
	assert.Equal(t, len(offline.DefaultManifest), status.Namespaces[0].Entries)
}

func TestActivateWithoutWaitingVersion(t *testing.T) {
	f := newAPIFixture(t, "")

	rec := f.do(t, http.MethodPost, "/api/v1/lifecycle/activate", "", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_INSTALLED")
}

func TestInstallFailure(t *testing.T) {
	f := newAPIFixture(t, "")
	f.origin.Close()

	rec := f.do(t, http.MethodPost, "/api/v1/lifecycle/install", "", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "INSTALL_FAILED")
}

func TestPushAndClick(t *testing.T) {
	f := newAPIFixture(t, "")

	rec := f.do(t, http.MethodPost, "/api/v1/push", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var n notify.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
	assert.Equal(t, notify.DefaultBody, n.Body)
	assert.Equal(t, notify.Title, n.Title)

	rec = f.do(t, http.MethodPost, "/api/v1/notifications/"+n.ID+"/click", `{"action":"explore"}`, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/notifications/unknown/click", `{"action":"close"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/notifications/feed", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/atom+xml")
	assert.Contains(t, rec.Body.String(), notify.DefaultBody)
}

func TestPushWithPayload(t *testing.T) {
	f := newAPIFixture(t, testSecret)

	rec := f.do(t, http.MethodPost, "/api/v1/push", "Evening wind-down", adminToken(t))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "Evening wind-down")
}

func TestSync(t *testing.T) {
	f := newAPIFixture(t, testSecret)

	rec := f.do(t, http.MethodPost, "/api/v1/sync/"+notify.SyncTag, "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsOverview(t *testing.T) {
	f := newAPIFixture(t, "")
	f.service.Metrics.RecordRequest("cache-first-store", observability.OutcomeHit, time.Millisecond)

	rec := f.do(t, http.MethodGet, "/api/v1/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var overview MetricsOverviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	assert.Equal(t, int64(1), overview.TotalRequests)
	assert.Equal(t, 100.0, overview.HitRate)
	assert.Equal(t, []string{"cache-first-store"}, overview.Strategies)
}
