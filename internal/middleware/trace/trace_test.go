package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"welth/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	m := NewMiddleware(log.NewDiscard(), func(*http.Request) string { return "203.0.113.1" })

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, strings.HasPrefix(seen, "req_"))
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMiddlewareEchoesValidIncomingID(t *testing.T) {
	m := NewMiddleware(log.NewDiscard(), nil)
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "upstream-abc123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "upstream-abc123", rec.Header().Get(HeaderRequestID))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "bad id\nwith newline")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.True(t, strings.HasPrefix(rec.Header().Get(HeaderRequestID), "req_"))
}

func TestMetricsCountServerErrors(t *testing.T) {
	m := NewMiddleware(log.NewDiscard(), nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))

	for _, p := range []string{"/", "/fail", "/"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	got := m.GetMetrics()
	assert.EqualValues(t, 3, got.TotalRequests)
	assert.EqualValues(t, 1, got.ServerErrors)
	assert.GreaterOrEqual(t, got.AverageResponseTime, int64(0))
}
