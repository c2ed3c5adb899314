package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const seatColumns = `id, event_id, section, row_label, seat_number, row_idx, col_idx, status, reserved_token, reserved_until`

// effectivelyAvailable matches seats that are available or whose hold has
// lapsed. It takes the current time as its single placeholder.
const effectivelyAvailable = `(status = 'available' OR (status = 'reserved' AND (reserved_until IS NULL OR reserved_until <= ?)))`

// seatInsertChunk bounds the number of rows per multi-row INSERT.
const seatInsertChunk = 500

// SeatRepo encapsulates access to the seats table. Every status change is a
// conditional UPDATE whose affected-row count the caller must check.
type SeatRepo struct{ db *sqlx.DB }

func NewSeatRepo(db *sqlx.DB) *SeatRepo { return &SeatRepo{db: db} }

func (r *SeatRepo) DB() *sqlx.DB { return r.db }

// ListByEvent returns the full seat map of an event in layout order.
func (r *SeatRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Seat, error) {
	var out []model.Seat
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+seatColumns+` FROM seats WHERE event_id = ? ORDER BY row_idx, col_idx`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list seats for event %d: %w", eventID, err)
	}
	return out, nil
}

// AvailableForEventTx returns the effectively available seats of an event
// at now, ordered by row_idx then col_idx.
func (r *SeatRepo) AvailableForEventTx(ctx context.Context, tx *sqlx.Tx, eventID uint64, now time.Time) ([]model.Seat, error) {
	var out []model.Seat
	err := tx.SelectContext(ctx, &out,
		`SELECT `+seatColumns+` FROM seats
		  WHERE event_id = ? AND `+effectivelyAvailable+`
		  ORDER BY row_idx, col_idx`, eventID, now)
	if err != nil {
		return nil, fmt.Errorf("available seats for event %d: %w", eventID, err)
	}
	return out, nil
}

// ReserveTx places a hold on seatIDs for those seats that are still
// effectively available at now. It returns the number of seats held; a
// value below len(seatIDs) means another writer got there first.
func (r *SeatRepo) ReserveTx(ctx context.Context, tx *sqlx.Tx, seatIDs []uint64, token string, until, now time.Time) (int64, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(
		`UPDATE seats SET status = 'reserved', reserved_token = ?, reserved_until = ?
		  WHERE id IN (?) AND `+effectivelyAvailable, token, until, seatIDs, now)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(q), args...)
	if err != nil {
		return 0, fmt.Errorf("reserve seats: %w", err)
	}
	return res.RowsAffected()
}

// ClaimForSaleTx marks one seat of eventID sold. The seat must be available,
// held under an expired hold, or held under any hold when token is empty
// (under the matching hold otherwise). It returns the affected-row count; 1
// means the caller owns the seat.
func (r *SeatRepo) ClaimForSaleTx(ctx context.Context, tx *sqlx.Tx, eventID, seatID uint64, token string, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE seats SET status = 'sold', reserved_token = NULL, reserved_until = NULL
		  WHERE id = ? AND event_id = ?
		    AND (status = 'available'
		         OR (status = 'reserved' AND (? = '' OR reserved_token = ? OR reserved_until IS NULL OR reserved_until <= ?)))`,
		seatID, eventID, token, token, now)
	if err != nil {
		return 0, fmt.Errorf("claim seat %d: %w", seatID, err)
	}
	return res.RowsAffected()
}

// NextAvailableForUpdateTx locks and returns the first effectively
// available seat of an event in layout order. ErrNoSeatAvailable when the
// event is sold out.
func (r *SeatRepo) NextAvailableForUpdateTx(ctx context.Context, tx *sqlx.Tx, eventID uint64, now time.Time) (model.Seat, error) {
	var s model.Seat
	err := tx.GetContext(ctx, &s,
		`SELECT `+seatColumns+` FROM seats
		  WHERE event_id = ? AND `+effectivelyAvailable+`
		  ORDER BY row_idx, col_idx LIMIT 1 FOR UPDATE`, eventID, now)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Seat{}, ErrNoSeatAvailable
	}
	if err != nil {
		return model.Seat{}, fmt.Errorf("next seat for event %d: %w", eventID, err)
	}
	return s, nil
}

// ReleaseHold returns the seats held under token to available and reports
// how many were released.
func (r *SeatRepo) ReleaseHold(ctx context.Context, eventID uint64, token string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE seats SET status = 'available', reserved_token = NULL, reserved_until = NULL
		  WHERE event_id = ? AND reserved_token = ? AND status = 'reserved'`, eventID, token)
	if err != nil {
		return 0, fmt.Errorf("release hold: %w", err)
	}
	return res.RowsAffected()
}

// CountByEvent returns how many seats an event has.
func (r *SeatRepo) CountByEvent(ctx context.Context, eventID uint64) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM seats WHERE event_id = ?`, eventID)
	return n, err
}

// CreateBulk inserts a generated layout in one transaction using multi-row
// INSERTs. Seat IDs are not populated.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for start := 0; start < len(seats); start += seatInsertChunk {
		end := min(start+seatInsertChunk, len(seats))
		chunk := seats[start:end]
		var sb strings.Builder
		sb.WriteString(`INSERT INTO seats (event_id, section, row_label, seat_number, row_idx, col_idx, status) VALUES `)
		args := make([]any, 0, len(chunk)*7)
		for i, s := range chunk {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
			status := s.Status
			if status == "" {
				status = model.SeatAvailable
			}
			args = append(args, s.EventID, s.Section, s.RowLabel, s.SeatNumber, s.RowIdx, s.ColIdx, status)
		}
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			if isDuplicateKey(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert seats: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
