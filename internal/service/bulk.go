package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// eventStartsLayout formats the event start time shown in ticket mail.
const eventStartsLayout = "Mon, 02 Jan 2006 15:04 MST"

// Recipient is one addressee of a bulk issuance.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// BulkRequest issues one ticket per recipient and queues the ticket mail.
type BulkRequest struct {
	EventID      uint64
	Recipients   []Recipient
	Subject      string
	BodyTemplate string
}

type BulkDetail struct {
	Email      string `json:"email"`
	Seat       string `json:"seat"`
	TicketCode string `json:"ticketCode"`
}

type BulkResult struct {
	Queued  int          `json:"queued"`
	Details []BulkDetail `json:"details"`
}

// ParseRecipients normalises a raw list whose entries are either bare
// email strings or {email, name} objects. Entries without a usable email
// are dropped.
func ParseRecipients(list []json.RawMessage) []Recipient {
	var out []Recipient
	for _, raw := range list {
		var email string
		if err := json.Unmarshal(raw, &email); err == nil {
			if email = strings.TrimSpace(email); email != "" {
				out = append(out, Recipient{Email: email})
			}
			continue
		}
		var obj struct {
			Email any `json:"email"`
			Name  any `json:"name"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue
		}
		e, ok := obj.Email.(string)
		if !ok || strings.TrimSpace(e) == "" {
			continue
		}
		n, _ := obj.Name.(string)
		out = append(out, Recipient{Email: strings.TrimSpace(e), Name: strings.TrimSpace(n)})
	}
	return out
}

// BulkIssue assigns the next available seat to every recipient, issues the
// tickets and queues one mail each, all in a single transaction. Running
// out of seats rolls the whole batch back.
func (s *Issuer) BulkIssue(ctx context.Context, req BulkRequest) (BulkResult, error) {
	if len(req.Recipients) == 0 {
		return BulkResult{}, invalid("no valid recipient emails were provided")
	}
	if req.EventID == 0 {
		return BulkResult{}, invalid("event_id is required")
	}
	subjectTmpl := orDefault(req.Subject, DefaultSubjectTemplate)
	bodyTmpl := orDefault(req.BodyTemplate, DefaultBodyTemplate)
	now := nowOr(s.Now)

	type issuedMail struct {
		ticket IssuedTicket
		label  string
	}
	var (
		result BulkResult
		issued []issuedMail
	)
	err := withTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		result, issued = BulkResult{Details: make([]BulkDetail, 0, len(req.Recipients))}, nil

		event, err := s.Events.GetByIDTx(ctx, tx, req.EventID)
		if err != nil {
			return err
		}
		for _, r := range req.Recipients {
			seat, err := s.Seats.NextAvailableForUpdateTx(ctx, tx, req.EventID, now)
			if errors.Is(err, repository.ErrNoSeatAvailable) {
				return ErrNotEnoughSeats
			}
			if err != nil {
				return err
			}
			t, err := s.issueTx(ctx, tx, IssueRequest{
				EventID: req.EventID,
				SeatID:  seat.ID,
				Email:   r.Email,
				Name:    r.Name,
			}, now)
			if errors.Is(err, ErrSeatUnavailable) {
				return ErrSeatsTakenConcurrently
			}
			if err != nil {
				return err
			}

			label := seat.Label()
			mail, err := s.ticketMail(event, r, t, label, subjectTmpl, bodyTmpl)
			if err != nil {
				return err
			}
			if err := s.Emails.EnqueueTx(ctx, tx, mail); err != nil {
				return err
			}
			result.Queued++
			result.Details = append(result.Details, BulkDetail{Email: r.Email, Seat: label, TicketCode: t.TicketCode})
			issued = append(issued, issuedMail{ticket: t, label: label})
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}

	s.Metrics.issued(len(issued))
	for _, m := range issued {
		s.publishIssued(ctx, m.ticket, m.label, true)
	}
	logOr(s.Log).WithFields(logrus.Fields{
		"event_id": req.EventID,
		"queued":   result.Queued,
	}).Info("bulk tickets issued")
	return result, nil
}

// ticketMail renders the subject and body for one recipient and attaches
// the QR image inline under its content id.
func (s *Issuer) ticketMail(event *model.Event, r Recipient, t IssuedTicket, seatLabel, subjectTmpl, bodyTmpl string) (*model.OutboundEmail, error) {
	cid := "qr-" + t.TicketCode + "@" + s.cidDomain()
	name := r.Name
	if name == "" {
		name = "Guest"
	}
	starts := ""
	if event.StartsAt != nil {
		starts = event.StartsAt.UTC().Format(eventStartsLayout)
	}
	data := map[string]string{
		"name":         name,
		"email":        r.Email,
		"event":        event.Name,
		"seat":         seatLabel,
		"ticket_code":  t.TicketCode,
		"qr_data_url":  t.QRDataURL,
		"qr_cid":       cid,
		"event_starts": starts,
	}
	subject := Interpolate(subjectTmpl, data)
	data["ticket"] = seatLabel + "\nTicket Code: " + t.TicketCode
	body := Interpolate(bodyTmpl, data)

	attachments, err := json.Marshal([]model.Attachment{{
		Filename:    t.TicketCode + ".png",
		Content:     base64.StdEncoding.EncodeToString(t.png),
		Encoding:    "base64",
		ContentType: "image/png",
		CID:         cid,
	}})
	if err != nil {
		return nil, err
	}
	att := string(attachments)
	m := &model.OutboundEmail{
		ToEmail:     r.Email,
		Subject:     subject,
		Body:        body,
		Attachments: &att,
	}
	if r.Name != "" {
		m.ToName = &r.Name
	}
	return m, nil
}

func (s *Issuer) cidDomain() string {
	if s.CIDDomain != "" {
		return s.CIDDomain
	}
	return "tickets.local"
}
