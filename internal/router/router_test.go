package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

const secret = "router-test-secret"

type acceptAll struct{}

func (acceptAll) Verify(ctx context.Context, raw string) (service.ScanResult, error) {
	return service.ScanResult{OK: true, Message: "Ticket accepted", TicketCode: raw}, nil
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	reg := prometheus.NewRegistry()
	service.NewMetrics(reg)
	off := middleware.NewTokenBucket(config.RateLimitConfig{}, nil, nil)
	RegisterRoutes(e, nil, reg)
	RegisterScanner(e, &handler.ScanHandler{Scanner: acceptAll{}}, secret, off)
	RegisterAdmin(e, Admin{
		Events:     &handler.EventHandler{},
		Allocation: &handler.AllocationHandler{},
		Tickets:    &handler.TicketHandler{},
		Analytics:  &handler.AnalyticsHandler{},
	}, secret, middleware.NewRedisCache(config.CacheConfig{}, nil))
	return e
}

func do(e *echo.Echo, method, path, role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if role != "" {
		tok, _ := utils.NewAccessToken(secret, 5, role, 5)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestScannerRouteRoles(t *testing.T) {
	e := newServer(t)

	rec := do(e, http.MethodPost, "/api/scanner/verify-qr", "", `{"qr":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, role := range []string{model.RoleScanner, model.RoleAdmin} {
		rec = do(e, http.MethodPost, "/api/scanner/verify-qr", role, `{"qr":"TIX-1"}`)
		require.Equal(t, http.StatusOK, rec.Code, role)
		assert.Contains(t, rec.Body.String(), `"ticketCode":"TIX-1"`)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	e := newServer(t)

	rec := do(e, http.MethodPost, "/api/admin/events/1/auto-assign", model.RoleScanner, `{"qty":2}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Validation happens before the allocator is touched.
	rec = do(e, http.MethodPost, "/api/admin/events/1/auto-assign", model.RoleAdmin, `{"qty":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOperationalRoutes(t *testing.T) {
	e := newServer(t)

	rec := do(e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = do(e, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
