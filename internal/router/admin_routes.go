package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
)

// Admin bundles the handlers mounted under /api/admin.
type Admin struct {
	Events     *handler.EventHandler
	Allocation *handler.AllocationHandler
	Tickets    *handler.TicketHandler
	Analytics  *handler.AnalyticsHandler
}

// RegisterAdmin registers ADMIN-only endpoints. cache wraps the read-heavy
// seat map and analytics overview; the SSE stream is never cached.
func RegisterAdmin(e *echo.Echo, a Admin, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/api/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Events ----
	g.GET("/events", a.Events.ListEvents)
	g.POST("/events", a.Events.CreateEvent)
	g.PUT("/events/:id", a.Events.UpdateEvent)

	// ---- Seats ----
	g.GET("/events/:id/seats", a.Events.ListSeats, cache)
	g.POST("/events/:id/seats/generate", a.Events.GenerateSeats)
	g.POST("/events/:id/auto-assign", a.Allocation.AutoAssign)
	g.DELETE("/events/:id/holds/:token", a.Allocation.ReleaseHold)

	// ---- Tickets and mail ----
	g.POST("/tickets/create", a.Tickets.CreateTicket)
	g.POST("/emails/bulk", a.Tickets.BulkEmail)
	g.POST("/emails/send-now", a.Tickets.SendNow)

	// ---- Analytics ----
	g.GET("/analytics/overview", a.Analytics.Overview, cache)
	g.GET("/analytics/stream", a.Analytics.Stream)
}
