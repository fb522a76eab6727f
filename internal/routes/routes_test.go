package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kvstore-api/internal/auth"
	"kvstore-api/internal/cache"
	"kvstore-api/internal/database"
	"kvstore-api/internal/kv"
	"kvstore-api/internal/metrics"
	"kvstore-api/internal/middleware"
	"kvstore-api/internal/testutil"
	"kvstore-api/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newDeps(t *testing.T, issuer *auth.Issuer) Deps {
	t.Helper()
	gin.SetMode(gin.TestMode)

	coll := metrics.NewCollector("kvtest")
	c, err := cache.New[string, string](10, cache.WithEvictionHook(func(string, string) { coll.RecordEviction() }))
	require.NoError(t, err)
	pool, err := worker.New(2, database.NewDialer(testutil.NewSQLiteDB(t)), worker.Options{Metrics: coll})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return Deps{
		Pool:    pool,
		Service: kv.NewService(c, kv.Options{Metrics: coll}),
		Metrics: coll,
		Issuer:  issuer,
	}
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := SetupRoutes(newDeps(t, nil))
	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestRoundTripAndMetrics(t *testing.T) {
	r := SetupRoutes(newDeps(t, nil))

	req := httptest.NewRequest(http.MethodPost, "/create", bytes.NewBufferString(`{"key": 1, "value": "one"}`))
	require.Equal(t, http.StatusOK, serve(r, req).Code)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/read/1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"one"`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "kvtest_cache_hits_total 1")
}

func TestWriteRoutesRequireTokenWhenAuthEnabled(t *testing.T) {
	issuer, err := auth.NewIssuer("secret", "kvstore-api", "kvstore-clients")
	require.NoError(t, err)
	r := SetupRoutes(newDeps(t, issuer))

	body := `{"key": 2, "value": "two"}`
	w := serve(r, httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(body)))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodDelete, "/delete/2", nil)).Code)

	token, err := issuer.GenerateToken("loadgen", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, serve(r, req).Code)

	// Reads stay public.
	require.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/read/2", nil)).Code)
}

func TestCORSPreflight(t *testing.T) {
	r := SetupRoutes(newDeps(t, nil))
	w := serve(r, httptest.NewRequest(http.MethodOptions, "/create", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
