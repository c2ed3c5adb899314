package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/service"
)

// TicketIssuer sells single seats and runs bulk mail-outs.
type TicketIssuer interface {
	Issue(ctx context.Context, req service.IssueRequest) (service.IssuedTicket, error)
	BulkIssue(ctx context.Context, req service.BulkRequest) (service.BulkResult, error)
}

// MailProcessor drains the outbound mail queue on demand.
type MailProcessor interface {
	ProcessPending(ctx context.Context, limit int) (service.MailStats, error)
}

type TicketHandler struct {
	Issuer TicketIssuer
	Mail   MailProcessor
}

type createTicketReq struct {
	EventID       uint64  `json:"event_id"`
	SeatID        uint64  `json:"seat_id"`
	UserEmail     string  `json:"user_email"`
	UserName      string  `json:"user_name"`
	Price         float64 `json:"price"`
	ReservedToken string  `json:"reserved_token"`
}

// CreateTicket sells one seat. A seat held by auto-assign may be sold;
// passing its reserved_token restricts the sale to that hold.
func (h *TicketHandler) CreateTicket(c echo.Context) error {
	var req createTicketReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	out, err := h.Issuer.Issue(c.Request().Context(), service.IssueRequest{
		EventID:       req.EventID,
		SeatID:        req.SeatID,
		Email:         req.UserEmail,
		Name:          req.UserName,
		Price:         req.Price,
		ReservedToken: req.ReservedToken,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type bulkEmailReq struct {
	EventID      uint64            `json:"event_id"`
	List         []json.RawMessage `json:"list"`
	Subject      string            `json:"subject"`
	BodyTemplate string            `json:"bodyTemplate"`
}

// BulkEmail issues one ticket per recipient and queues the ticket mail.
// The whole batch fails when seats run out.
func (h *TicketHandler) BulkEmail(c echo.Context) error {
	var req bulkEmailReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if len(req.List) == 0 {
		return badRequest(c, "list must be a non-empty array")
	}
	res, err := h.Issuer.BulkIssue(c.Request().Context(), service.BulkRequest{
		EventID:      req.EventID,
		Recipients:   service.ParseRecipients(req.List),
		Subject:      req.Subject,
		BodyTemplate: req.BodyTemplate,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type sendNowReq struct {
	Limit int `json:"limit"`
}

// SendNow runs one pass of the mail worker.
func (h *TicketHandler) SendNow(c echo.Context) error {
	var req sendNowReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	stats, err := h.Mail.ProcessPending(c.Request().Context(), service.ClampBatch(req.Limit))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
