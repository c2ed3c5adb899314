package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/qrtoken"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// Scan rejection causes. Use errors.Is on the error returned by Verify.
var (
	ErrQRMissing       = errors.New("qr payload missing")
	ErrQRMalformed     = errors.New("qr code is not valid json")
	ErrBadSignature    = errors.New("ticket signature is invalid")
	ErrTicketUsed      = errors.New("ticket already used")
	ErrTicketCancelled = errors.New("ticket has been cancelled")
	ErrTicketInvalid   = errors.New("ticket is not valid")
)

// ScanResult describes the scanned ticket. On success OK is true and
// UsedAt is the admission time; rejections carry it as context.
type ScanResult struct {
	OK           bool    `json:"ok,omitempty"`
	Message      string  `json:"message,omitempty"`
	TicketID     uint64  `json:"ticketId"`
	TicketCode   string  `json:"ticketCode"`
	Attendee     string  `json:"attendee"`
	AttendeeName *string `json:"attendeeName"`
	EventName    *string `json:"eventName"`
	SeatLabel    *string `json:"seatLabel"`
	UsedAt       string  `json:"usedAt,omitempty"`
}

// ScanError is a rejected scan. Message is shown to the door operator and
// Ticket, when set, identifies the ticket that was presented.
type ScanError struct {
	Err     error
	Message string
	Ticket  *ScanResult
}

func (e *ScanError) Error() string { return e.Message }
func (e *ScanError) Unwrap() error { return e.Err }

// Scanner validates presented tickets and admits each at most once.
type Scanner struct {
	Signer    *qrtoken.Signer
	Tickets   *repository.TicketRepo
	Publisher EventPublisher
	Metrics   *Metrics
	Log       logrus.FieldLogger
	Now       func() time.Time
}

// Verify checks the token text read from a QR code and, if the ticket is
// active, marks it used. Concurrent scans of one ticket admit exactly one.
func (s *Scanner) Verify(ctx context.Context, raw string) (ScanResult, error) {
	tok, err := qrtoken.Parse(raw)
	if errors.Is(err, qrtoken.ErrEmpty) {
		return s.reject(ErrQRMissing, "QR payload missing", nil, "malformed")
	}
	if err != nil {
		return s.reject(ErrQRMalformed, "QR code is not valid JSON", nil, "malformed")
	}
	if !s.Signer.Verify(tok) {
		return s.reject(ErrBadSignature, "Ticket signature is invalid", nil, "bad_signature")
	}
	p, err := qrtoken.Decode(tok)
	if err != nil {
		return s.reject(ErrBadSignature, "Ticket signature is invalid", nil, "bad_signature")
	}

	view, err := s.Tickets.ScanView(ctx, p.TicketID)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return s.reject(ErrTicketNotFound, "Ticket not found", nil, "not_found")
	}
	if err != nil {
		return ScanResult{}, err
	}
	if view.Status != model.TicketActive {
		return s.rejectState(view)
	}

	now := nowOr(s.Now)
	n, err := s.Tickets.MarkUsed(ctx, view.ID, now)
	if err != nil {
		return ScanResult{}, err
	}
	if n == 0 {
		// Another scan won; report what it left behind.
		view, err = s.Tickets.ScanView(ctx, view.ID)
		if err != nil {
			return ScanResult{}, err
		}
		return s.rejectState(view)
	}

	res := scanContext(view)
	res.OK = true
	res.Message = "Ticket accepted"
	res.UsedAt = now.Format(isoMillis)
	s.Metrics.scan("admitted")
	s.publishScanned(ctx, view, res, now)
	logOr(s.Log).WithFields(logrus.Fields{
		"ticket_id": view.ID,
		"event_id":  view.EventID,
	}).Info("ticket admitted")
	return res, nil
}

// rejectState explains why a non-active ticket is refused.
func (s *Scanner) rejectState(v *model.TicketScanView) (ScanResult, error) {
	ctxRes := scanContext(v)
	switch v.Status {
	case model.TicketUsed:
		msg := "Ticket already used"
		if v.UsedAt != nil {
			ctxRes.UsedAt = v.UsedAt.UTC().Format(isoMillis)
			msg = "Ticket already used at " + v.UsedAt.UTC().Format(time.RFC1123)
		}
		return s.reject(ErrTicketUsed, msg, &ctxRes, "already_used")
	case model.TicketCancelled:
		return s.reject(ErrTicketCancelled, "Ticket has been cancelled", &ctxRes, "cancelled")
	}
	return s.reject(ErrTicketInvalid, "Ticket is not valid", &ctxRes, "invalid")
}

func (s *Scanner) reject(cause error, msg string, ticket *ScanResult, outcome string) (ScanResult, error) {
	s.Metrics.scan(outcome)
	return ScanResult{}, &ScanError{Err: cause, Message: msg, Ticket: ticket}
}

func (s *Scanner) publishScanned(ctx context.Context, v *model.TicketScanView, res ScanResult, at time.Time) {
	if s.Publisher == nil {
		return
	}
	label := ""
	if res.SeatLabel != nil {
		label = *res.SeatLabel
	}
	err := s.Publisher.PublishTicketScanned(ctx, queue.TicketScannedEvent{
		TicketID:   v.ID,
		TicketCode: v.TicketCode,
		EventID:    v.EventID,
		SeatLabel:  label,
		ScannedAt:  at.Format(isoMillis),
	})
	if err != nil {
		logOr(s.Log).WithError(err).WithField("ticket_id", v.ID).Warn("publish ticket.scanned failed")
	}
}

func scanContext(v *model.TicketScanView) ScanResult {
	res := ScanResult{
		TicketID:     v.ID,
		TicketCode:   v.TicketCode,
		Attendee:     v.UserEmail,
		AttendeeName: nonEmpty(v.UserName),
		EventName:    nonEmpty(v.EventName),
	}
	var section, row string
	var number uint32
	if v.Section != nil {
		section = *v.Section
	}
	if v.RowLabel != nil {
		row = *v.RowLabel
	}
	if v.SeatNumber != nil {
		number = *v.SeatNumber
	}
	if label := model.SeatLabel(section, row, number, " · "); label != "" {
		res.SeatLabel = &label
	}
	return res
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
