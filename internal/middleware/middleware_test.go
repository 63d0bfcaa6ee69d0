package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dance-booking/internal/config"
	"github.com/iliyamo/dance-booking/internal/model"
	"github.com/iliyamo/dance-booking/internal/ratelimit"
	"github.com/iliyamo/dance-booking/internal/utils"
)

const secret = "test-secret"

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	e := echo.New()
	g := e.Group("", JWTAuth(secret))
	g.GET("/me", func(c echo.Context) error {
		id, ok := IdentityFrom(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.String(http.StatusOK, id.UserID+"/"+id.Role)
	})
	g.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireRole(model.RoleAdmin))

	rec := serve(e, http.MethodGet, "/me", bearer(t, "u1", model.RoleStudent))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1/student", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "Bearer junk").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/admin", bearer(t, "u1", model.RoleTeacher)).Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/admin", bearer(t, "u1", model.RoleAdmin)).Code)
}

type stubLimiter struct {
	d    ratelimit.Decision
	err  error
	keys []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (ratelimit.Decision, error) {
	s.keys = append(s.keys, key)
	return s.d, s.err
}

func TestRateLimit(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Prefix: "rl", KeyStrategy: "user_route"}
	quiet := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	newEcho := func(l ratelimit.Limiter) *echo.Echo {
		e := echo.New()
		g := e.Group("", JWTAuth(secret), RateLimit(cfg, l, quiet))
		g.GET("/v1/reservations", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
		return e
	}

	t.Run("allowed", func(t *testing.T) {
		l := &stubLimiter{d: ratelimit.Decision{Allowed: true, Remaining: 4, Limit: 5}}
		rec := serve(newEcho(l), http.MethodGet, "/v1/reservations", bearer(t, "u1", model.RoleStudent))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, []string{"rl:user:u1:route:GET /v1/reservations"}, l.keys)
	})
	t.Run("blocked", func(t *testing.T) {
		l := &stubLimiter{d: ratelimit.Decision{Limit: 5, RetryAfter: 1500 * time.Millisecond}}
		rec := serve(newEcho(l), http.MethodGet, "/v1/reservations", bearer(t, "u1", model.RoleStudent))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	})
	t.Run("fails open", func(t *testing.T) {
		l := &stubLimiter{err: errors.New("redis down")}
		rec := serve(newEcho(l), http.MethodGet, "/v1/reservations", bearer(t, "u1", model.RoleStudent))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("memory limiter end to end", func(t *testing.T) {
		l := ratelimit.NewMemoryLimiter(ratelimit.Bucket{Capacity: 2, RefillInterval: time.Hour})
		defer l.Stop()
		e := newEcho(l)
		auth := bearer(t, "u2", model.RoleStudent)
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/reservations", auth).Code)
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/reservations", auth).Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodGet, "/v1/reservations", auth).Code)
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/reservations", bearer(t, "u3", model.RoleStudent)).Code)
	})
}

func TestBuildRateKey_Strategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set("X-Real-IP", "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")
	c.Set(ctxUserID, "u1")

	tests := map[string]string{
		"ip":            "rl:ip:10.0.0.9",
		"user":          "rl:user:u1",
		"ip_route":      "rl:ip:10.0.0.9:route:POST /v1/reservations",
		"ip_user_route": "rl:ip:10.0.0.9:user:u1:route:POST /v1/reservations",
	}
	for strategy, want := range tests {
		assert.Equal(t, want, buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c), strategy)
	}
}

func TestCachePayloadRoundTrip(t *testing.T) {
	h := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, h, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, hdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", hdr.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 0, 0, 1, 0, 0, 1, 0})
	assert.False(t, ok)
}

func TestResponseCache_DisabledWithoutRedis(t *testing.T) {
	rc := NewResponseCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil, nil)
	e := echo.New()
	e.GET("/v1/classes", func(c echo.Context) error { return c.String(http.StatusOK, "[]") }, rc.Middleware())

	rec := serve(e, http.MethodGet, "/v1/classes", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.NoError(t, rc.Purge(context.Background()))
}

func TestWebhookSecret(t *testing.T) {
	e := echo.New()
	e.POST("/hook", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, WebhookSecret("s3cret"))
	e.POST("/open", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, WebhookSecret(""))

	send := func(path, secret string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if secret != "" {
			req.Header.Set(WebhookSecretHeader, secret)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send("/hook", "s3cret"))
	assert.Equal(t, http.StatusUnauthorized, send("/hook", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, send("/hook", ""))
	assert.Equal(t, http.StatusNoContent, send("/open", ""))
}
