package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/service"
)

// SeatAllocator holds and releases blocks of seats.
type SeatAllocator interface {
	AutoAssign(ctx context.Context, eventID uint64, qty int) (service.Hold, error)
	ReleaseHold(ctx context.Context, eventID uint64, token string) (int64, error)
}

type AllocationHandler struct {
	Allocator SeatAllocator
}

type autoAssignReq struct {
	Qty int `json:"qty"`
}

// AutoAssign answers 409 when no block fits or a competing hold won.
func (h *AllocationHandler) AutoAssign(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event id")
	}
	var req autoAssignReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Qty < 1 {
		return badRequest(c, "Quantity must be greater than zero")
	}
	hold, err := h.Allocator.AutoAssign(c.Request().Context(), id, req.Qty)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, hold)
}

// ReleaseHold frees the seats of a hold before it lapses.
func (h *AllocationHandler) ReleaseHold(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event id")
	}
	n, err := h.Allocator.ReleaseHold(c.Request().Context(), id, c.Param("token"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}
