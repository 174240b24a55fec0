package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agentc22/x402-engine/internal/catalog"
	"github.com/agentc22/x402-engine/internal/creds"
	"github.com/agentc22/x402-engine/internal/ledger"
	"github.com/agentc22/x402-engine/internal/ttlcache"
	"github.com/agentc22/x402-engine/internal/upstream"
	"github.com/agentc22/x402-engine/internal/x402proto"
)

func testCatalog(t *testing.T) *catalog.Registry {
	t.Helper()
	reg, err := catalog.Load(strings.NewReader(`[{
		"id": "weather-current",
		"displayName": "Current Weather",
		"description": "Current conditions",
		"price": "0.001",
		"method": "GET",
		"path": "/api/weather/current",
		"upstreamTag": "weather",
		"mimeType": "application/json",
		"category": "data"
	}]`))
	require.NoError(t, err)
	return reg
}

func testLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	l, err := ledger.Open(db, ledger.PoolConfig{}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newTestServer(t *testing.T, devBypass bool) *Server {
	t.Helper()
	l := testLedger(t)
	pool := creds.NewPool()
	dispatcher := upstream.NewDispatcher(ttlcache.New(), pool, l, upstream.Config{})

	return New(Config{
		Registry:   testCatalog(t),
		Ledger:     l,
		Dispatcher: dispatcher,
		Handlers:   HandlerRegistry{},
		Recipients: x402proto.Recipients{
			Fast:  "0xfast",
			SlowA: "0xslowa",
			SlowB: "0xslowb",
		},
		MaxTimeoutSeconds: 60,
		ExternalURL:       "https://example.test",
		DevBypassEnabled:  devBypass,
		DevBypassSecret:   "topsecret",
		Version:           "test",
		Log:               zerolog.Nop(),
	})
}

func TestHealthIsFree(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWellKnownManifestListsService(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/.well-known/x402.json", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "weather-current")
}

func TestPaidRouteWithoutPaymentReturns402(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/api/weather/current", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	require.NotEmpty(t, rec.Header().Get(x402proto.HeaderName))
}

func TestUnknownRouteIsNotGated(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/api/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)
	require.NotEqual(t, http.StatusPaymentRequired, rec.Code)
}

func TestDevBypassSkipsPaymentGate(t *testing.T) {
	srv := newTestServer(t, true)
	req := httptest.NewRequest(http.MethodGet, "/api/weather/current", nil)
	req.Header.Set("X-Dev-Bypass-Secret", "topsecret")
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)
	require.NotEqual(t, http.StatusPaymentRequired, rec.Code)
}

func TestFacilitatorSurfaceUnknownRail(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/facilitator/bogus/supported", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFacilitatorSurfaceStatusUnknownRail(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/facilitator/bogus/status", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFacilitatorSurfaceStatusKnownRailReportsDisconnected(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/facilitator/fast/status", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"connected":false`)
}

func TestServiceDetailNotFound(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/api/services/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServiceDetailFound(t *testing.T) {
	srv := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/api/services/weather-current", nil)
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
