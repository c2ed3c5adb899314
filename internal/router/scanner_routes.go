package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// RegisterScanner registers the door endpoint. Admins may scan too.
func RegisterScanner(e *echo.Echo, s *handler.ScanHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/api/scanner",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleScanner, model.RoleAdmin),
		limit,
	)
	g.POST("/verify-qr", s.VerifyQR)
}
