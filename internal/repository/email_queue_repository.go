package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const emailColumns = `id, to_email, to_name, subject, body, attachments, status, tries, last_attempt, created_at`

// EmailQueueRepo encapsulates access to the email_queue table.
type EmailQueueRepo struct{ db *sqlx.DB }

func NewEmailQueueRepo(db *sqlx.DB) *EmailQueueRepo { return &EmailQueueRepo{db: db} }

func (r *EmailQueueRepo) DB() *sqlx.DB { return r.db }

// EnqueueTx stores a pending message and sets m.ID.
func (r *EmailQueueRepo) EnqueueTx(ctx context.Context, tx *sqlx.Tx, m *model.OutboundEmail) error {
	m.Status = model.EmailPending
	res, err := tx.ExecContext(ctx,
		`INSERT INTO email_queue (to_email, to_name, subject, body, attachments, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ToEmail, m.ToName, m.Subject, m.Body, m.Attachments, m.Status)
	if err != nil {
		return fmt.Errorf("enqueue email to %s: %w", m.ToEmail, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// ListPending returns up to limit pending messages, oldest first.
func (r *EmailQueueRepo) ListPending(ctx context.Context, limit int) ([]model.OutboundEmail, error) {
	var out []model.OutboundEmail
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+emailColumns+` FROM email_queue
		  WHERE status = 'pending' ORDER BY created_at, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending email: %w", err)
	}
	return out, nil
}

// ClaimTx moves a pending message to sending and counts the attempt. A
// result of 0 means another worker claimed it.
func (r *EmailQueueRepo) ClaimTx(ctx context.Context, tx *sqlx.Tx, id uint64, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE email_queue SET status = 'sending', tries = tries + 1, last_attempt = ?
		  WHERE id = ? AND status = 'pending'`, now, id)
	if err != nil {
		return 0, fmt.Errorf("claim email %d: %w", id, err)
	}
	return res.RowsAffected()
}

// SetStatusTx records the outcome of a delivery attempt.
func (r *EmailQueueRepo) SetStatusTx(ctx context.Context, tx *sqlx.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx, `UPDATE email_queue SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set email %d %s: %w", id, status, err)
	}
	return nil
}
