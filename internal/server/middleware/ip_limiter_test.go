package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hydromet/datanode/internal/server/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitExhaustsBurst(t *testing.T) {
	t.Parallel()

	limiter := middleware.NewIPLimiter(1, 2)
	handler := limiter.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/download", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, serve("10.0.0.1:5000"), "first request fits the burst")
	require.Equal(t, http.StatusOK, serve("10.0.0.1:5001"), "second request fits the burst")
	assert.Equal(t, http.StatusTooManyRequests, serve("10.0.0.1:5002"), "third request exceeds the burst")

	// Other clients keep their own bucket.
	assert.Equal(t, http.StatusOK, serve("10.0.0.2:5000"), "an unrelated client must not be throttled")
}

func TestRateLimitRejectsUnparsableRemoteAddr(t *testing.T) {
	t.Parallel()

	limiter := middleware.NewIPLimiter(1, 1)
	handler := limiter.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/download", nil)
	req.RemoteAddr = "not-an-address"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, "an address without a port cannot be attributed to a client")
}
