package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// StatusCount is a COUNT(*) grouped by event and status.
type StatusCount struct {
	EventID uint64 `db:"event_id"`
	Status  string `db:"status"`
	Count   int    `db:"count"`
}

// TicketCount adds the revenue of the group.
type TicketCount struct {
	EventID uint64  `db:"event_id"`
	Status  string  `db:"status"`
	Count   int     `db:"count"`
	Revenue float64 `db:"revenue"`
}

// CheckinBucket is the number of scans of an event within one minute.
// Bucket has the form "2006-01-02 15:04:00" in UTC.
type CheckinBucket struct {
	EventID uint64 `db:"event_id"`
	Bucket  string `db:"bucket"`
	Count   int    `db:"count"`
}

// EventCount is a COUNT(*) grouped by event.
type EventCount struct {
	EventID uint64 `db:"event_id"`
	Count   int    `db:"count"`
}

// QueueCount is a COUNT(*) of the mail queue grouped by status.
type QueueCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

// AnalyticsRepo runs the read-only aggregate queries behind the dashboard.
type AnalyticsRepo struct{ db *sqlx.DB }

func NewAnalyticsRepo(db *sqlx.DB) *AnalyticsRepo { return &AnalyticsRepo{db: db} }

// SeatCounts groups seats by event and effective status at now, so lapsed
// holds count as available.
func (r *AnalyticsRepo) SeatCounts(ctx context.Context, now time.Time) ([]StatusCount, error) {
	var out []StatusCount
	err := r.db.SelectContext(ctx, &out,
		`SELECT event_id, status, COUNT(*) AS count
		   FROM (SELECT event_id,
		                CASE WHEN status = 'reserved' AND (reserved_until IS NULL OR reserved_until <= ?)
		                     THEN 'available' ELSE status END AS status
		           FROM seats) s
		  GROUP BY event_id, status`, now)
	if err != nil {
		return nil, fmt.Errorf("seat counts: %w", err)
	}
	return out, nil
}

func (r *AnalyticsRepo) TicketCounts(ctx context.Context) ([]TicketCount, error) {
	var out []TicketCount
	err := r.db.SelectContext(ctx, &out,
		`SELECT event_id, status, COUNT(*) AS count, COALESCE(SUM(price), 0) AS revenue
		   FROM tickets
		  GROUP BY event_id, status`)
	if err != nil {
		return nil, fmt.Errorf("ticket counts: %w", err)
	}
	return out, nil
}

// CheckinBuckets returns per-minute scan counts since the given time.
func (r *AnalyticsRepo) CheckinBuckets(ctx context.Context, since time.Time) ([]CheckinBucket, error) {
	var out []CheckinBucket
	err := r.db.SelectContext(ctx, &out,
		`SELECT event_id, DATE_FORMAT(used_at, '%Y-%m-%d %H:%i:00') AS bucket, COUNT(*) AS count
		   FROM tickets
		  WHERE status = 'used' AND used_at >= ?
		  GROUP BY event_id, bucket
		  ORDER BY bucket`, since)
	if err != nil {
		return nil, fmt.Errorf("checkin buckets: %w", err)
	}
	return out, nil
}

// CheckinsSince counts scans per event since the given time.
func (r *AnalyticsRepo) CheckinsSince(ctx context.Context, since time.Time) ([]EventCount, error) {
	var out []EventCount
	err := r.db.SelectContext(ctx, &out,
		`SELECT event_id, COUNT(*) AS count
		   FROM tickets
		  WHERE status = 'used' AND used_at >= ?
		  GROUP BY event_id`, since)
	if err != nil {
		return nil, fmt.Errorf("recent checkins: %w", err)
	}
	return out, nil
}

func (r *AnalyticsRepo) QueueCounts(ctx context.Context) ([]QueueCount, error) {
	var out []QueueCount
	err := r.db.SelectContext(ctx, &out, `SELECT status, COUNT(*) AS count FROM email_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue counts: %w", err)
	}
	return out, nil
}
