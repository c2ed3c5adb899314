package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// DefaultRowPattern is the seats-per-row sequence of the standard hall,
// repeated until the capacity is reached.
var DefaultRowPattern = []int{18, 20, 22, 24, 26, 28, 30, 30, 28, 26, 24, 22, 20, 18}

// DefaultSection names the single section of a generated layout.
const DefaultSection = "Main"

// RowLabel returns the spreadsheet-style label of a zero-based row index:
// 0 -> A, 25 -> Z, 26 -> AA, 27 -> AB.
func RowLabel(i int) string {
	if i < 0 {
		return ""
	}
	var b []byte
	for n := i; n >= 0; n = n/26 - 1 {
		b = append([]byte{byte('A' + n%26)}, b...)
	}
	return string(b)
}

// BuildLayout lays out capacity seats for an event row by row following
// pattern; the last row is truncated to fit. Seat numbers start at 1 and
// col_idx at 0 in every row.
func BuildLayout(eventID uint64, capacity int, pattern []int, section string) ([]model.Seat, error) {
	if capacity <= 0 {
		return nil, invalid("capacity must be a positive integer")
	}
	if len(pattern) == 0 {
		pattern = DefaultRowPattern
	}
	for _, n := range pattern {
		if n <= 0 {
			return nil, invalid("row sizes must be positive integers")
		}
	}
	seats := make([]model.Seat, 0, capacity)
	for row := 0; len(seats) < capacity; row++ {
		count := min(pattern[row%len(pattern)], capacity-len(seats))
		label := RowLabel(row)
		for col := 0; col < count; col++ {
			seats = append(seats, model.Seat{
				EventID:    eventID,
				Section:    section,
				RowLabel:   label,
				SeatNumber: uint32(col + 1),
				RowIdx:     row,
				ColIdx:     col,
				Status:     model.SeatAvailable,
			})
		}
	}
	return seats, nil
}

// LayoutRequest configures seat generation. Zero values select the event
// capacity, the default pattern and the default section.
type LayoutRequest struct {
	Capacity int    `json:"capacity"`
	Rows     []int  `json:"rows"`
	Section  string `json:"section"`
}

// SeatGenerator creates the seat map of an event.
type SeatGenerator struct {
	Events *repository.EventRepo
	Seats  *repository.SeatRepo
	Log    logrus.FieldLogger
}

// Generate builds and stores the layout of an event that has no seats yet.
// It returns the number of seats created.
func (g *SeatGenerator) Generate(ctx context.Context, eventID uint64, req LayoutRequest) (int, error) {
	event, err := g.Events.GetByID(ctx, eventID)
	if err != nil {
		return 0, err
	}
	existing, err := g.Seats.CountByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, fmt.Errorf("event %d already has %d seats: %w", eventID, existing, repository.ErrConflict)
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = event.Capacity
	}
	if capacity == 0 {
		capacity = model.DefaultCapacity
	}
	section := req.Section
	if section == "" {
		section = DefaultSection
	}
	seats, err := BuildLayout(eventID, capacity, req.Rows, section)
	if err != nil {
		return 0, err
	}
	if err := g.Seats.CreateBulk(ctx, seats); err != nil {
		return 0, err
	}
	logOr(g.Log).WithFields(logrus.Fields{"event_id": eventID, "seats": len(seats)}).Info("seat layout generated")
	return len(seats), nil
}
