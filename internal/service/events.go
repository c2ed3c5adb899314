package service

import (
	"context"
	"io"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/queue"
)

// EventPublisher receives domain events after the owning transaction has
// committed. Publishing is best effort.
type EventPublisher interface {
	PublishTicketIssued(ctx context.Context, ev queue.TicketIssuedEvent) error
	PublishTicketScanned(ctx context.Context, ev queue.TicketScannedEvent) error
}

// isoMillis matches JavaScript's Date.toISOString for UTC times.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func utcNow() time.Time { return time.Now().UTC() }

func nowOr(f func() time.Time) time.Time {
	if f != nil {
		return f().UTC()
	}
	return utcNow()
}

func logOr(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}

// withTx runs fn in a transaction, committing when it returns nil and
// rolling back otherwise.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
