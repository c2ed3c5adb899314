package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// DefaultHoldDuration is how long an auto-assigned block stays reserved.
const DefaultHoldDuration = 10 * time.Minute

// Hold is the result of a successful auto-assign.
type Hold struct {
	Reserved      []uint64  `json:"reserved"`
	ReservedToken string    `json:"reservedToken"`
	ReservedUntil time.Time `json:"reservedUntil"`
}

// Allocator finds and holds blocks of adjacent seats.
type Allocator struct {
	DB           *sqlx.DB
	Seats        *repository.SeatRepo
	HoldDuration time.Duration
	Now          func() time.Time
	NewToken     func() string
	Log          logrus.FieldLogger
	Metrics      *Metrics
}

// AutoAssign holds the first run of qty adjacent available seats, scanning
// rows in layout order.
func (a *Allocator) AutoAssign(ctx context.Context, eventID uint64, qty int) (Hold, error) {
	if qty < 1 {
		return Hold{}, invalid("qty must be a positive integer")
	}
	now := nowOr(a.Now)
	token := a.newToken()
	until := now.Add(a.holdDuration())

	var hold Hold
	err := withTx(ctx, a.DB, func(tx *sqlx.Tx) error {
		seats, err := a.Seats.AvailableForEventTx(ctx, tx, eventID, now)
		if err != nil {
			return err
		}
		block := FindContiguous(seats, qty, now)
		if block == nil {
			return ErrNoContiguousBlock
		}
		ids := make([]uint64, len(block))
		for i, s := range block {
			ids[i] = s.ID
		}
		n, err := a.Seats.ReserveTx(ctx, tx, ids, token, until, now)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return ErrSeatsTakenConcurrently
		}
		hold = Hold{Reserved: ids, ReservedToken: token, ReservedUntil: until}
		return nil
	})
	if err != nil {
		a.Metrics.allocation(outcomeOf(err))
		return Hold{}, err
	}
	a.Metrics.allocation("held")
	logOr(a.Log).WithFields(logrus.Fields{
		"event_id": eventID,
		"seats":    len(hold.Reserved),
		"until":    until,
	}).Info("seats held")
	return hold, nil
}

// ReleaseHold returns the seats of a hold to sale and reports how many were
// released. Lapsed holds still match until something else claims them.
func (a *Allocator) ReleaseHold(ctx context.Context, eventID uint64, token string) (int64, error) {
	if token == "" {
		return 0, invalid("reservation token is required")
	}
	return a.Seats.ReleaseHold(ctx, eventID, token)
}

// FindContiguous returns the first run of qty seats that are effectively
// available at now and adjacent by col_idx within one row. Rows are visited
// in the order their label first appears in seats, and seats within a row
// keep their input order. It returns nil when no row qualifies.
func FindContiguous(seats []model.Seat, qty int, now time.Time) []model.Seat {
	if qty < 1 {
		return nil
	}
	var order []string
	rows := make(map[string][]model.Seat)
	for _, s := range seats {
		if _, seen := rows[s.RowLabel]; !seen {
			order = append(order, s.RowLabel)
		}
		rows[s.RowLabel] = append(rows[s.RowLabel], s)
	}
	for _, label := range order {
		row := rows[label]
		start := -1
		for i, s := range row {
			if s.EffectiveStatus(now) != model.SeatAvailable {
				start = -1
				continue
			}
			if start < 0 || row[i-1].ColIdx+1 != s.ColIdx {
				start = i
			}
			if i-start+1 == qty {
				return row[start : i+1]
			}
		}
	}
	return nil
}

func (a *Allocator) holdDuration() time.Duration {
	if a.HoldDuration > 0 {
		return a.HoldDuration
	}
	return DefaultHoldDuration
}

func (a *Allocator) newToken() string {
	if a.NewToken != nil {
		return a.NewToken()
	}
	return uuid.NewString()
}

func outcomeOf(err error) string {
	switch err {
	case ErrNoContiguousBlock:
		return "no_block"
	case ErrSeatsTakenConcurrently:
		return "race_lost"
	}
	return "error"
}
