package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/event-ticketing/internal/model"
)

const eventColumns = `id, name, description, poster_url, starts_at, ends_at, performance_at, capacity, created_at`

// EventRepo encapsulates access to the events table.
type EventRepo struct{ db *sqlx.DB }

func NewEventRepo(db *sqlx.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle so services can open transactions.
func (r *EventRepo) DB() *sqlx.DB { return r.db }

// List returns every event, scheduled ones first (latest start first), then
// unscheduled ones newest first.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	var out []model.Event
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+eventColumns+` FROM events
		  ORDER BY starts_at IS NULL, starts_at DESC, created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// GetByID fetches one event. ErrEventNotFound when absent.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	return getEvent(ctx, r.db, id)
}

// GetByIDTx is GetByID inside an open transaction.
func (r *EventRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Event, error) {
	return getEvent(ctx, tx, id)
}

func getEvent(ctx context.Context, q sqlx.QueryerContext, id uint64) (*model.Event, error) {
	var e model.Event
	err := sqlx.GetContext(ctx, q, &e, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return &e, nil
}

// Create inserts e and refreshes it from the database so defaults such as
// created_at are populated.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	res, err := r.db.NamedExecContext(ctx,
		`INSERT INTO events (name, description, poster_url, starts_at, ends_at, performance_at, capacity)
		 VALUES (:name, :description, :poster_url, :starts_at, :ends_at, :performance_at, :capacity)`, e)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*e = *created
	return nil
}

// Update writes every mutable column of e. ErrEventNotFound when the row
// does not exist.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
	res, err := r.db.NamedExecContext(ctx,
		`UPDATE events SET name = :name, description = :description, poster_url = :poster_url,
		        starts_at = :starts_at, ends_at = :ends_at, performance_at = :performance_at,
		        capacity = :capacity
		  WHERE id = :id`, e)
	if err != nil {
		return fmt.Errorf("update event %d: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 for unchanged rows too; confirm existence.
		if _, err := r.GetByID(ctx, e.ID); err != nil {
			return err
		}
	}
	return nil
}
