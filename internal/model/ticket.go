package model

import "time"

// Ticket statuses.
const (
	TicketActive    = "active"
	TicketUsed      = "used"
	TicketCancelled = "cancelled"
)

// Ticket is an admission right for one seat. QRPayload stores the exact
// signed token text embedded in the QR image.
type Ticket struct {
	ID         uint64     `db:"id" json:"id"`
	TicketCode string     `db:"ticket_code" json:"ticket_code"`
	UserEmail  string     `db:"user_email" json:"user_email"`
	UserName   *string    `db:"user_name" json:"user_name"`
	EventID    uint64     `db:"event_id" json:"event_id"`
	SeatID     *uint64    `db:"seat_id" json:"seat_id"`
	Price      float64    `db:"price" json:"price"`
	Status     string     `db:"status" json:"status"`
	UsedAt     *time.Time `db:"used_at" json:"used_at"`
	QRPayload  *string    `db:"qr_payload" json:"-"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// TicketScanView is a ticket joined with its event and seat, as the door
// scanner needs it.
type TicketScanView struct {
	ID         uint64     `db:"id"`
	TicketCode string     `db:"ticket_code"`
	Status     string     `db:"status"`
	UserEmail  string     `db:"user_email"`
	UserName   *string    `db:"user_name"`
	UsedAt     *time.Time `db:"used_at"`
	EventID    uint64     `db:"event_id"`
	EventName  *string    `db:"event_name"`
	Section    *string    `db:"section"`
	RowLabel   *string    `db:"row_label"`
	SeatNumber *uint32    `db:"seat_number"`
}
