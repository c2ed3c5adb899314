package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// TicketRepo encapsulates access to the tickets table.
type TicketRepo struct{ db *sqlx.DB }

func NewTicketRepo(db *sqlx.DB) *TicketRepo { return &TicketRepo{db: db} }

// CreateTx inserts t and sets t.ID from the generated key.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, t *model.Ticket) error {
	if t.Status == "" {
		t.Status = model.TicketActive
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO tickets (ticket_code, user_email, user_name, event_id, seat_id, price, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.TicketCode, t.UserEmail, t.UserName, t.EventID, t.SeatID, t.Price, t.Status)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("ticket code %q: %w", t.TicketCode, ErrConflict)
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// SetQRPayloadTx stores the signed token text of a ticket.
func (r *TicketRepo) SetQRPayloadTx(ctx context.Context, tx *sqlx.Tx, id uint64, payload string) error {
	_, err := tx.ExecContext(ctx, `UPDATE tickets SET qr_payload = ? WHERE id = ?`, payload, id)
	if err != nil {
		return fmt.Errorf("store qr payload for ticket %d: %w", id, err)
	}
	return nil
}

// ScanView loads a ticket with its event name and seat position.
// ErrTicketNotFound when absent.
func (r *TicketRepo) ScanView(ctx context.Context, id uint64) (*model.TicketScanView, error) {
	var v model.TicketScanView
	err := r.db.GetContext(ctx, &v,
		`SELECT t.id, t.ticket_code, t.status, t.user_email, t.user_name, t.used_at, t.event_id,
		        e.name AS event_name, s.section, s.row_label, s.seat_number
		   FROM tickets t
		   LEFT JOIN events e ON e.id = t.event_id
		   LEFT JOIN seats s ON s.id = t.seat_id
		  WHERE t.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket %d: %w", id, err)
	}
	return &v, nil
}

// MarkUsed flips an active ticket to used. It returns the affected-row
// count; 0 means the ticket was not active when the statement ran.
func (r *TicketRepo) MarkUsed(ctx context.Context, id uint64, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET status = 'used', used_at = ? WHERE id = ? AND status = 'active'`, at, id)
	if err != nil {
		return 0, fmt.Errorf("mark ticket %d used: %w", id, err)
	}
	return res.RowsAffected()
}
