// Package queue defines the messages exchanged over RabbitMQ and the
// publisher and consumer that move them.
package queue

import "github.com/iliyamo/event-ticketing/internal/model"

// Queue names. All queues are durable and fed through the default exchange.
const (
	TicketIssuedQueue  = "ticket.issued"
	TicketScannedQueue = "ticket.scanned"
	OutboundMailQueue  = "mail.outbound"
)

// TicketIssuedEvent is published after a ticket has been committed. It
// carries enough for downstream consumers to audit or notify without
// querying the primary database.
type TicketIssuedEvent struct {
	TicketID   uint64  `json:"ticket_id"`
	TicketCode string  `json:"ticket_code"`
	EventID    uint64  `json:"event_id"`
	SeatID     uint64  `json:"seat_id"`
	SeatLabel  string  `json:"seat"`
	Email      string  `json:"email"`
	Price      float64 `json:"price"`
	Bulk       bool    `json:"bulk"`
	IssuedAt   string  `json:"issued_at"`
}

// TicketScannedEvent is published when a ticket is admitted at the door.
type TicketScannedEvent struct {
	TicketID   uint64 `json:"ticket_id"`
	TicketCode string `json:"ticket_code"`
	EventID    uint64 `json:"event_id"`
	SeatLabel  string `json:"seat"`
	ScannedAt  string `json:"scanned_at"`
}

// OutboundMail is handed to the external delivery service.
type OutboundMail struct {
	QueueID     uint64             `json:"queue_id"`
	To          string             `json:"to"`
	ToName      string             `json:"to_name,omitempty"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
}
