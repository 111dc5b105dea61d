package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeaders(t *testing.T) {
	api := newTestAPI(t, Options{})
	res := doJSON(t, api, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, res.Code)

	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", res.Header().Get("Referrer-Policy"))
	assert.Contains(t, res.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Equal(t, "no-store", res.Header().Get("Cache-Control"))
	assert.NotEmpty(t, res.Header().Get("X-Request-Id"))
}

func TestCORSAllowsConfiguredOriginOnly(t *testing.T) {
	api := newTestAPI(t, Options{AllowedOrigin: "http://pos.local, http://127.0.0.1:3000"})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/sales/totals", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		res := httptest.NewRecorder()
		api.ServeHTTP(res, req)
		return res
	}

	res := preflight("http://pos.local")
	assert.Equal(t, "http://pos.local", res.Header().Get("Access-Control-Allow-Origin"))

	res = preflight("http://evil.example")
	assert.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitPerClient(t *testing.T) {
	api := newTestAPI(t, Options{RateLimitPerMinute: 2})

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/purchase-orders/totals", strings.NewReader(`{"items":[]}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.10:5555"
		res := httptest.NewRecorder()
		api.ServeHTTP(res, req)
		return res.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	health := doJSON(t, api, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestRejectsOversizedBody(t *testing.T) {
	api := newTestAPI(t, Options{})

	padding := bytes.Repeat([]byte("a"), maxBodyBytes+1)
	body := `{"supplierId":"` + string(padding) + `","items":[]}`
	res := doJSON(t, api, http.MethodPost, "/api/v1/purchase-orders/prepare", body)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestUpstreamFailureBodyStaysGeneric(t *testing.T) {
	res := httptest.NewRecorder()
	writeError(res, http.StatusInternalServerError, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.NotContains(t, res.Body.String(), assert.AnError.Error())
	assert.Contains(t, res.Body.String(), "internal server error")
}
