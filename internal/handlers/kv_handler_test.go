package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kvstore-api/internal/cache"
	"kvstore-api/internal/connection"
	"kvstore-api/internal/database"
	"kvstore-api/internal/kv"
	"kvstore-api/internal/realtime"
	"kvstore-api/internal/testutil"
	"kvstore-api/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	msgs [][]byte
}

func (r *recorder) Send(message []byte) bool {
	r.msgs = append(r.msgs, message)
	return true
}

func (r *recorder) Close() {}

func newRouter(t *testing.T, dial connection.Dialer, hub *realtime.Hub) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, err := cache.New[string, string](10)
	require.NoError(t, err)
	pool, err := worker.New(2, dial, worker.Options{})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	h := NewKVHandler(pool, kv.NewService(c, kv.Options{}), hub, nil)
	r := gin.New()
	r.POST("/create", h.Create)
	r.GET("/read/:key", h.Read)
	r.DELETE("/delete/:key", h.Delete)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateReadDelete_SQLite(t *testing.T) {
	opts := testutil.NewSQLiteDB(t)
	hub := realtime.NewHub()
	feed := &recorder{}
	hub.Register(feed)
	r := newRouter(t, database.NewDialer(opts), hub)

	w := do(r, http.MethodPost, "/create", `{"key": 5, "value": "x"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Created", decodeBody(t, w)["message"])

	w = do(r, http.MethodGet, "/read/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "x", decodeBody(t, w)["value"])

	w = do(r, http.MethodDelete, "/delete/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Deleted", decodeBody(t, w)["message"])

	w = do(r, http.MethodGet, "/read/5", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodDelete, "/delete/5", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	require.Len(t, feed.msgs, 2)
	require.JSONEq(t, `{"op":"create","key":5}`, string(feed.msgs[0]))
	require.JSONEq(t, `{"op":"delete","key":5}`, string(feed.msgs[1]))
}

func TestCreate_KeyAndValueForms(t *testing.T) {
	store := testutil.NewFakeStore()
	r := newRouter(t, store.Dialer(), nil)

	w := do(r, http.MethodPost, "/create", `{"key": "07", "value": 42}`)
	require.Equal(t, http.StatusOK, w.Code)
	row, ok := store.Row(7)
	require.True(t, ok)
	require.Equal(t, "42", row)

	w = do(r, http.MethodPost, "/create", `{"key": -3, "value": {"a": [1, 2]}}`)
	require.Equal(t, http.StatusOK, w.Code)
	row, ok = store.Row(-3)
	require.True(t, ok)
	require.Equal(t, `{"a":[1,2]}`, row)

	w = do(r, http.MethodGet, "/read/7", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "42", decodeBody(t, w)["value"])
}

func TestCreate_BadRequests(t *testing.T) {
	store := testutil.NewFakeStore()
	r := newRouter(t, store.Dialer(), nil)

	cases := map[string]string{
		"empty body":    "",
		"blank body":    "   ",
		"invalid json":  `{"key": 1,`,
		"missing key":   `{"value": "a"}`,
		"missing value": `{"key": 1}`,
		"null value":    `{"key": 1, "value": null}`,
		"bad key":       `{"key": "abc", "value": "a"}`,
		"bool key":      `{"key": true, "value": "a"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/create", strings.NewReader(body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.NotEmpty(t, decodeBody(t, w)["error"])
		})
	}
	require.Equal(t, 0, store.Calls(testutil.CallUpsert))
}

func TestReadDelete_InvalidKey(t *testing.T) {
	store := testutil.NewFakeStore()
	r := newRouter(t, store.Dialer(), nil)

	require.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/read/abc", "").Code)
	require.Equal(t, http.StatusBadRequest, do(r, http.MethodDelete, "/delete/1.5", "").Code)
	require.Equal(t, 0, store.Calls(testutil.CallDial))
}

func TestStoreUnavailable(t *testing.T) {
	store := testutil.NewFakeStore()
	store.FailDials(errors.New("refused"))
	hub := realtime.NewHub()
	feed := &recorder{}
	hub.Register(feed)
	r := newRouter(t, store.Dialer(), hub)

	w := do(r, http.MethodPost, "/create", `{"key": 1, "value": "a"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "Store unavailable", decodeBody(t, w)["error"])

	require.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/read/1", "").Code)
	require.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodDelete, "/delete/1", "").Code)
	require.Empty(t, feed.msgs)
}

func TestStoreRejected(t *testing.T) {
	store := testutil.NewFakeStore()
	store.FailOps(errors.New("disk I/O error"))
	r := newRouter(t, store.Dialer(), nil)

	w := do(r, http.MethodPost, "/create", `{"key": 1, "value": "a"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "DB Error", decodeBody(t, w)["error"])
}
