package model

import (
	"fmt"
	"strings"
	"time"
)

// Seat statuses.
const (
	SeatAvailable = "available"
	SeatReserved  = "reserved"
	SeatSold      = "sold"
	SeatBlocked   = "blocked"
)

// Seat is one physical place belonging to an event. RowIdx and ColIdx are
// the zero-based layout coordinates; adjacency is defined by ColIdx within
// a row, never by SeatNumber.
//
// Fields:
//
//	ID            – primary key identifier.
//	EventID       – owning event.
//	Section       – hall section (may be empty).
//	RowLabel      – row designation (A..Z, AA, AB, ...).
//	SeatNumber    – number printed on the seat.
//	RowIdx        – row ordering index.
//	ColIdx        – position within the row.
//	Status        – stored status (available, reserved, sold, blocked).
//	ReservedToken – hold token while reserved.
//	ReservedUntil – hold expiry while reserved.
type Seat struct {
	ID            uint64     `db:"id" json:"id"`
	EventID       uint64     `db:"event_id" json:"event_id"`
	Section       string     `db:"section" json:"section"`
	RowLabel      string     `db:"row_label" json:"row_label"`
	SeatNumber    uint32     `db:"seat_number" json:"seat_number"`
	RowIdx        int        `db:"row_idx" json:"row_idx"`
	ColIdx        int        `db:"col_idx" json:"col_idx"`
	Status        string     `db:"status" json:"status"`
	ReservedToken *string    `db:"reserved_token" json:"-"`
	ReservedUntil *time.Time `db:"reserved_until" json:"reserved_until,omitempty"`
}

// EffectiveStatus reports the status with hold expiry applied: a reserved
// seat whose hold has lapsed at now is available.
func (s Seat) EffectiveStatus(now time.Time) string {
	if s.Status == SeatReserved && (s.ReservedUntil == nil || !s.ReservedUntil.After(now)) {
		return SeatAvailable
	}
	return s.Status
}

// SeatLabel renders "Section X<sep>Row Y<sep>Seat N", leaving out empty
// parts. It returns "" when nothing is known about the seat.
func SeatLabel(section, row string, number uint32, sep string) string {
	var parts []string
	if section != "" {
		parts = append(parts, "Section "+section)
	}
	if row != "" {
		parts = append(parts, "Row "+row)
	}
	if number > 0 {
		parts = append(parts, fmt.Sprintf("Seat %d", number))
	}
	return strings.Join(parts, sep)
}

// Label is the mail-friendly seat description.
func (s Seat) Label() string {
	return SeatLabel(s.Section, s.RowLabel, s.SeatNumber, " ")
}
