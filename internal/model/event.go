package model

import "time"

// DefaultCapacity is the seat count of the standard hall layout generated
// when an event is created without an explicit capacity.
const DefaultCapacity = 1196

// Event is a single performance that seats and tickets belong to.
//
// Fields:
//
//	ID            – primary key identifier.
//	Name          – display name, never empty.
//	Description   – optional free text.
//	PosterURL     – optional image URL.
//	StartsAt      – doors/start time; drives list ordering and the mail template.
//	EndsAt        – optional end time.
//	PerformanceAt – optional curtain time when it differs from StartsAt.
//	Capacity      – number of seats the layout was generated for.
//	CreatedAt     – creation timestamp.
type Event struct {
	ID            uint64     `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Description   *string    `db:"description" json:"description"`
	PosterURL     *string    `db:"poster_url" json:"poster_url"`
	StartsAt      *time.Time `db:"starts_at" json:"starts_at"`
	EndsAt        *time.Time `db:"ends_at" json:"ends_at"`
	PerformanceAt *time.Time `db:"performance_at" json:"performance_at"`
	Capacity      int        `db:"capacity" json:"capacity"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
