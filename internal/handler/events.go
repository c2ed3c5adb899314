package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// EventStore is the event persistence the admin endpoints need.
type EventStore interface {
	List(ctx context.Context) ([]model.Event, error)
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	Create(ctx context.Context, e *model.Event) error
	Update(ctx context.Context, e *model.Event) error
}

type SeatLister interface {
	ListByEvent(ctx context.Context, eventID uint64) ([]model.Seat, error)
}

type LayoutGenerator interface {
	Generate(ctx context.Context, eventID uint64, req service.LayoutRequest) (int, error)
}

// EventHandler serves event administration and the seat map.
type EventHandler struct {
	Events EventStore
	Seats  SeatLister
	Layout LayoutGenerator
	Now    func() time.Time
}

// eventReq fields are pointers so updates can tell "absent" from "empty".
type eventReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PosterURL   *string `json:"poster_url"`
	StartsAt    *string `json:"starts_at"`
	EndsAt      *string `json:"ends_at"`
	Capacity    *int    `json:"capacity"`
}

var eventTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02"}

// parseEventTime returns nil for an empty string.
func parseEventTime(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// apply merges the request into e. Fields absent from the request keep
// their current value.
func (r eventReq) apply(e *model.Event) string {
	if r.Name != nil {
		e.Name = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		e.Description = blankToNil(r.Description)
	}
	if r.PosterURL != nil {
		e.PosterURL = blankToNil(r.PosterURL)
	}
	if r.StartsAt != nil {
		t, ok := parseEventTime(*r.StartsAt)
		if !ok {
			return "starts_at is not a valid time"
		}
		e.StartsAt = t
		if t != nil {
			e.PerformanceAt = t
		}
	}
	if r.EndsAt != nil {
		t, ok := parseEventTime(*r.EndsAt)
		if !ok {
			return "ends_at is not a valid time"
		}
		e.EndsAt = t
	}
	if r.Capacity != nil {
		if *r.Capacity < 0 {
			return "capacity must not be negative"
		}
		e.Capacity = *r.Capacity
	}
	return ""
}

// ListEvents returns scheduled events first (latest start first), then the
// rest newest first.
func (h *EventHandler) ListEvents(c echo.Context) error {
	events, err := h.Events.List(c.Request().Context())
	if err != nil {
		return err
	}
	if events == nil {
		events = []model.Event{}
	}
	return c.JSON(http.StatusOK, events)
}

// CreateEvent requires a name; capacity defaults to the standard hall.
func (h *EventHandler) CreateEvent(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return badRequest(c, "Event name is required")
	}
	e := &model.Event{Capacity: model.DefaultCapacity}
	if msg := req.apply(e); msg != "" {
		return badRequest(c, msg)
	}
	if err := h.Events.Create(c.Request().Context(), e); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

// UpdateEvent applies a partial update.
func (h *EventHandler) UpdateEvent(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event id")
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return badRequest(c, "Event name cannot be empty")
	}
	ctx := c.Request().Context()
	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if msg := req.apply(e); msg != "" {
		return badRequest(c, msg)
	}
	if err := h.Events.Update(ctx, e); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// ListSeats returns the seat map in layout order with lapsed holds shown as
// available.
func (h *EventHandler) ListSeats(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event id")
	}
	seats, err := h.Seats.ListByEvent(c.Request().Context(), id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now()
	}
	out := make([]model.Seat, len(seats))
	for i, s := range seats {
		if st := s.EffectiveStatus(now); st != s.Status {
			s.Status = st
			s.ReservedUntil = nil
		}
		out[i] = s
	}
	return c.JSON(http.StatusOK, out)
}

// GenerateSeats creates the seat layout of an event that has none.
func (h *EventHandler) GenerateSeats(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event id")
	}
	var req service.LayoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	n, err := h.Layout.Generate(c.Request().Context(), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"event_id": id, "seats": n})
}
