package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func do(h http.Handler, r *http.Request) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec.Code
}

func TestAuth(t *testing.T) {
	h := Auth("s3cret", "/api/health")(ok)

	assert.Equal(t, http.StatusUnauthorized, do(h, httptest.NewRequest("GET", "/api/alerts", nil)))
	assert.Equal(t, http.StatusOK, do(h, httptest.NewRequest("GET", "/api/health", nil)))

	r := httptest.NewRequest("GET", "/api/alerts", nil)
	r.Header.Set("Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, do(h, r))

	r = httptest.NewRequest("GET", "/api/alerts", nil)
	r.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, do(h, r))

	assert.Equal(t, http.StatusOK, do(h, httptest.NewRequest("GET", "/ws?token=s3cret", nil)))

	assert.Equal(t, http.StatusOK, do(Auth("")(ok), httptest.NewRequest("GET", "/api/alerts", nil)))
}

func TestRateLimitPerIP(t *testing.T) {
	h := RateLimit(NewIPLimiter(0.001, 2))(ok)

	req := func(ip string) *http.Request {
		r := httptest.NewRequest("GET", "/api/alerts", nil)
		r.RemoteAddr = ip + ":5555"
		return r
	}

	assert.Equal(t, http.StatusOK, do(h, req("10.0.0.1")))
	assert.Equal(t, http.StatusOK, do(h, req("10.0.0.1")))
	assert.Equal(t, http.StatusTooManyRequests, do(h, req("10.0.0.1")))
	assert.Equal(t, http.StatusOK, do(h, req("10.0.0.2")))

	fwd := req("10.0.0.1")
	fwd.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, http.StatusOK, do(h, fwd))
}

func TestRateLimitNilDisabled(t *testing.T) {
	h := RateLimit(nil)(ok)
	for range 5 {
		assert.Equal(t, http.StatusOK, do(h, httptest.NewRequest("GET", "/", nil)))
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(ok)

	r := httptest.NewRequest(http.MethodOptions, "/api/alerts", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
	assert.Equal(t, "Retry-After", rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	r = httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	r.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcard(t *testing.T) {
	for _, origins := range [][]string{nil, {"*"}} {
		h := CORS(origins)(ok)
		r := httptest.NewRequest(http.MethodGet, "/api/session", nil)
		r.Header.Set("Origin", "http://any.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://any.example", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
