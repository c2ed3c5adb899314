package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/qrtoken"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// IssueRequest is a manual ticket sale for a specific seat. A non-empty
// ReservedToken restricts the sale of a held seat to that hold.
type IssueRequest struct {
	EventID       uint64
	SeatID        uint64
	Email         string
	Name          string
	Price         float64
	ReservedToken string
}

// IssuedTicket is what the caller gets back for one new ticket.
type IssuedTicket struct {
	TicketID   uint64 `json:"ticketId"`
	TicketCode string `json:"ticketCode"`
	QRDataURL  string `json:"qrDataUrl"`

	png     []byte
	eventID uint64
	seatID  uint64
	email   string
	price   float64
	issued  time.Time
}

// Issuer creates tickets. Single and bulk issuance share issueTx so every
// ticket goes through the same seat claim and signing steps.
type Issuer struct {
	DB        *sqlx.DB
	Events    *repository.EventRepo
	Seats     *repository.SeatRepo
	Tickets   *repository.TicketRepo
	Emails    *repository.EmailQueueRepo
	Signer    *qrtoken.Signer
	Publisher EventPublisher
	Metrics   *Metrics
	Log       logrus.FieldLogger

	CodePrefix string
	CIDDomain  string
	QRSize     int
	Now        func() time.Time
	NewCode    func() string
	NewNonce   func() string
}

// Issue sells one seat and returns the signed ticket.
func (s *Issuer) Issue(ctx context.Context, req IssueRequest) (IssuedTicket, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.EventID == 0 || req.SeatID == 0 || req.Email == "" {
		return IssuedTicket{}, invalid("event_id, seat_id, and user_email are required")
	}
	if req.Price < 0 {
		return IssuedTicket{}, invalid("price must not be negative")
	}
	now := nowOr(s.Now)

	var out IssuedTicket
	err := withTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		var err error
		out, err = s.issueTx(ctx, tx, req, now)
		return err
	})
	if err != nil {
		return IssuedTicket{}, err
	}
	s.Metrics.issued(1)
	s.publishIssued(ctx, out, "", false)
	logOr(s.Log).WithFields(logrus.Fields{
		"ticket_id": out.TicketID,
		"event_id":  req.EventID,
		"seat_id":   req.SeatID,
	}).Info("ticket issued")
	return out, nil
}

// issueTx claims the seat, inserts the ticket, signs its token and stores
// the token text, all inside tx. The seat claim is the double-issuance
// guard: it succeeds for exactly one transaction per seat.
func (s *Issuer) issueTx(ctx context.Context, tx *sqlx.Tx, req IssueRequest, now time.Time) (IssuedTicket, error) {
	n, err := s.Seats.ClaimForSaleTx(ctx, tx, req.EventID, req.SeatID, req.ReservedToken, now)
	if err != nil {
		return IssuedTicket{}, err
	}
	if n != 1 {
		return IssuedTicket{}, ErrSeatUnavailable
	}

	seatID := req.SeatID
	t := &model.Ticket{
		TicketCode: s.newCode(),
		UserEmail:  req.Email,
		EventID:    req.EventID,
		SeatID:     &seatID,
		Price:      req.Price,
		Status:     model.TicketActive,
	}
	if req.Name != "" {
		t.UserName = &req.Name
	}
	if err := s.Tickets.CreateTx(ctx, tx, t); err != nil {
		return IssuedTicket{}, err
	}

	signed, err := s.Signer.Sign(qrtoken.Payload{
		TicketID: t.ID,
		EventID:  req.EventID,
		SeatID:   req.SeatID,
		IssuedAt: now.Format(isoMillis),
		Nonce:    s.newNonce(),
	})
	if err != nil {
		return IssuedTicket{}, err
	}
	text, err := qrtoken.Encode(signed)
	if err != nil {
		return IssuedTicket{}, err
	}
	png, err := qrtoken.RenderPNG(text, s.QRSize)
	if err != nil {
		return IssuedTicket{}, err
	}
	if err := s.Tickets.SetQRPayloadTx(ctx, tx, t.ID, text); err != nil {
		return IssuedTicket{}, err
	}
	return IssuedTicket{
		TicketID:   t.ID,
		TicketCode: t.TicketCode,
		QRDataURL:  qrtoken.DataURL(png),
		png:        png,
		eventID:    req.EventID,
		seatID:     req.SeatID,
		email:      req.Email,
		price:      req.Price,
		issued:     now,
	}, nil
}

func (s *Issuer) publishIssued(ctx context.Context, t IssuedTicket, seatLabel string, bulk bool) {
	if s.Publisher == nil {
		return
	}
	err := s.Publisher.PublishTicketIssued(ctx, queue.TicketIssuedEvent{
		TicketID:   t.TicketID,
		TicketCode: t.TicketCode,
		EventID:    t.eventID,
		SeatID:     t.seatID,
		SeatLabel:  seatLabel,
		Email:      t.email,
		Price:      t.price,
		Bulk:       bulk,
		IssuedAt:   t.issued.Format(isoMillis),
	})
	if err != nil {
		logOr(s.Log).WithError(err).WithField("ticket_id", t.TicketID).Warn("publish ticket.issued failed")
	}
}

func (s *Issuer) newCode() string {
	if s.NewCode != nil {
		return s.NewCode()
	}
	prefix := s.CodePrefix
	if prefix == "" {
		prefix = "TIX"
	}
	return prefix + "-" + shortuuid.New()
}

func (s *Issuer) newNonce() string {
	if s.NewNonce != nil {
		return s.NewNonce()
	}
	return uuid.NewString()
}
