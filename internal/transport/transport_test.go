// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/icecore/icegate/internal/request"
	"github.com/icecore/icegate/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) session.Store {
	t.Helper()
	store := session.NewMemoryStore(time.Hour, 0)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFromHTTP_PopulatesRequest(t *testing.T) {
	hr := httptest.NewRequest(http.MethodPost, "/things?page=3&q=abc", strings.NewReader("payload"))
	hr.Header.Set("Content-Type", "text/plain")
	hr.Header.Set("X-MIXED-Case", "yes")
	hr.RemoteAddr = "192.0.2.1:4711"

	req, err := FromHTTP(hr)
	require.NoError(t, err)
	defer func() { _ = req.Close() }()

	require.Equal(t, http.MethodPost, req.Method())
	require.Equal(t, "/things?page=3&q=abc", req.URI())
	require.Equal(t, "192.0.2.1:4711", req.RemoteAddr())
	require.Equal(t, "payload", string(req.Body()))
	require.Equal(t, "text/plain", req.Header("content-type"))
	require.Equal(t, "yes", req.Header("x-mixed-case"))
	require.Equal(t, "3", req.Param("page"))
	require.Equal(t, "abc", req.Param("q"))
}

func TestEndpoint_RouteParamsAndClose(t *testing.T) {
	store := newTestStore(t)

	var seenID, seenKey string
	var captured *request.Request

	r := NewRouter(StackConfig{})
	r.Get("/sessions/{id}/items/{key}", Endpoint(store, func(ctx context.Context, req *request.Request) *Response {
		seenID = req.Param("id")
		seenKey = req.Param("key")
		captured = req
		return Text(http.StatusOK, "ok")
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/s-1/items/color", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "s-1", seenID)
	require.Equal(t, "color", seenKey)

	// The transport owns the Request and has closed it by now.
	require.False(t, captured.LoadSession(context.Background(), "s-1"))
}

func TestEndpoint_SessionLifecycle(t *testing.T) {
	store := newTestStore(t)

	r := NewRouter(StackConfig{})
	r.Post("/sessions", Endpoint(store, func(ctx context.Context, req *request.Request) *Response {
		req.CreateSession(ctx)
		id, ok := req.SessionID(ctx)
		if !ok {
			return Text(http.StatusInternalServerError, "no session")
		}
		return JSON(http.StatusCreated, map[string]string{"sessionId": id})
	}))
	r.Put("/sessions/{id}/items/{key}", Endpoint(store, func(ctx context.Context, req *request.Request) *Response {
		if !req.LoadSession(ctx, req.Param("id")) || !req.HasSession() {
			return NotFound()
		}
		req.SetSessionItem(ctx, req.Param("key"), string(req.Body()))
		stored, _ := req.SessionItem(ctx, req.Param("key"))
		return Text(http.StatusOK, stored)
	}))
	r.Get("/sessions/{id}/items/{key}", Endpoint(store, func(ctx context.Context, req *request.Request) *Response {
		if !req.LoadSession(ctx, req.Param("id")) || !req.HasSession() {
			return NotFound()
		}
		v, ok := req.SessionItem(ctx, req.Param("key"))
		if !ok {
			return NotFound()
		}
		return Text(http.StatusOK, v)
	}))

	// Create a session.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.SessionID
	require.NotEmpty(t, id)

	// Write an item through one request, read it back through another.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/sessions/"+id+"/items/color", strings.NewReader("teal")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "teal", rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/items/color", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "teal", rec.Body.String())

	// Unknown session id resolves to 404, not an error.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/nope/items/color", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestID_GeneratedAndEchoed(t *testing.T) {
	r := NewRouter(StackConfig{})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	// A caller-supplied id is kept.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "caller-id")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, "caller-id", rec.Header().Get(HeaderRequestID))
}

func TestRecoverer_CatchesPanic(t *testing.T) {
	r := NewRouter(StackConfig{})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestRateLimit_Enforced(t *testing.T) {
	r := NewRouter(StackConfig{
		EnableRateLimit:   true,
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.9:1000"
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.9:1000"
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}
