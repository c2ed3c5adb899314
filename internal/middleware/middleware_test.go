package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

const testSecret = "middleware-test-secret"

func serve(t *testing.T, mw []echo.MiddlewareFunc, auth string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/events", nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	require.NoError(t, h(c))
	return rec, c
}

func bearer(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, userID, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestJWTAuthStoresIdentity(t *testing.T) {
	rec, c := serve(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, bearer(t, 12, "SCANNER"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(12), c.Get("user_id"))
	assert.Equal(t, "SCANNER", c.Get("role"))
	assert.Equal(t, "12", currentUserID(c))
}

func TestJWTAuthRejects(t *testing.T) {
	cases := map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"garbage":      "Bearer not-a-jwt",
		"other secret": "",
	}
	other, err := utils.NewAccessToken("another-secret", 1, "ADMIN", 5)
	require.NoError(t, err)
	cases["other secret"] = "Bearer " + other.Token

	for name, auth := range cases {
		t.Run(name, func(t *testing.T) {
			rec, c := serve(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, auth)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, c.Get("user_id"))
			assert.Equal(t, "anon", currentUserID(c))
		})
	}
}

func TestRequireRole(t *testing.T) {
	chain := []echo.MiddlewareFunc{JWTAuth(testSecret), RequireRole("SCANNER", "ADMIN")}

	rec, _ := serve(t, chain, bearer(t, 1, "ADMIN"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = serve(t, chain, bearer(t, 1, "GUEST"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
}

func TestRedisMiddlewaresPassThroughWithoutRedis(t *testing.T) {
	chain := []echo.MiddlewareFunc{
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil),
	}
	rec, _ := serve(t, chain, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCacheEntryRoundTrip(t *testing.T) {
	hdr := http.Header{echo.HeaderContentType: []string{echo.MIMEApplicationJSON}}
	bs, err := encodeEntry(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodeEntry(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, echo.MIMEApplicationJSON, got.Get(echo.HeaderContentType))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodeEntry(bs[:5])
	assert.False(t, ok)
}
