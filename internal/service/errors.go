// Package service holds the ticketing workflows: contiguous seat holds,
// ticket issuance (single and bulk), door scanning, the outbound mail
// worker and the analytics snapshot. Every seat or ticket mutation runs in
// one database transaction guarded by conditional updates.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/event-ticketing/internal/repository"
)

var (
	// ErrNoContiguousBlock means no row has enough adjacent free seats.
	ErrNoContiguousBlock = errors.New("cannot find contiguous block")
	// ErrSeatsTakenConcurrently means a competing writer claimed part of
	// the chosen block between selection and reservation. Retryable.
	ErrSeatsTakenConcurrently = errors.New("some seats were taken in parallel")
	// ErrSeatUnavailable means the seat is sold, blocked or held by
	// someone else.
	ErrSeatUnavailable = errors.New("seat is not available")
	// ErrNotEnoughSeats aborts a bulk issuance that ran out of seats.
	ErrNotEnoughSeats = errors.New("not enough available seats for all recipients")

	ErrEventNotFound  = repository.ErrEventNotFound
	ErrTicketNotFound = repository.ErrTicketNotFound
)

// ValidationError is a client input problem; handlers answer 400 with Msg.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
