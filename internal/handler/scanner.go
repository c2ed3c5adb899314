package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/service"
)

type TicketVerifier interface {
	Verify(ctx context.Context, raw string) (service.ScanResult, error)
}

type ScanHandler struct {
	Scanner TicketVerifier
}

type verifyReq struct {
	QR string `json:"qr"`
}

// scanRejection is the error body of a refused scan. Ticket context is
// included when the ticket was identified.
type scanRejection struct {
	Error string `json:"error"`
	*service.ScanResult
}

// VerifyQR admits a ticket at the door.
func (h *ScanHandler) VerifyQR(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "QR payload missing")
	}
	res, err := h.Scanner.Verify(c.Request().Context(), req.QR)
	var se *service.ScanError
	if errors.As(err, &se) {
		return c.JSON(scanStatus(se), scanRejection{Error: se.Message, ScanResult: se.Ticket})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func scanStatus(se *service.ScanError) int {
	switch {
	case errors.Is(se, service.ErrTicketNotFound):
		return http.StatusNotFound
	case errors.Is(se, service.ErrTicketUsed),
		errors.Is(se, service.ErrTicketCancelled),
		errors.Is(se, service.ErrTicketInvalid):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}
