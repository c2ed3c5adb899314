package service

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/qrtoken"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

func newScanner(t *testing.T) (*Scanner, sqlmock.Sqlmock) {
	db, dbMock := newMockDB(t)
	return &Scanner{
		Signer:  newSigner(t),
		Tickets: repository.NewTicketRepo(db),
		Now:     fixedClock,
	}, dbMock
}

func ticketToken(t *testing.T, s *qrtoken.Signer, ticketID uint64) string {
	t.Helper()
	signed, err := s.Sign(qrtoken.Payload{
		TicketID: ticketID, EventID: 7, SeatID: 311,
		IssuedAt: "2026-03-01T12:00:00.000Z", Nonce: "n-1",
	})
	require.NoError(t, err)
	text, err := qrtoken.Encode(signed)
	require.NoError(t, err)
	return text
}

func scanRow(status string, usedAt any) *sqlmock.Rows {
	return sqlmock.NewRows(scanCols).
		AddRow(int64(42), "TIX-abc", status, "ada@example.com", "Ada", usedAt, int64(7), "Spring Gala", "Main", "C", int64(4))
}

func TestVerifyAdmitsActiveTicket(t *testing.T) {
	s, dbMock := newScanner(t)
	pub := &publisherMock{}
	s.Publisher = pub
	pub.On("PublishTicketScanned", mock.Anything, queue.TicketScannedEvent{
		TicketID:   42,
		TicketCode: "TIX-abc",
		EventID:    7,
		SeatLabel:  "Section Main · Row C · Seat 4",
		ScannedAt:  "2026-03-01T18:30:00.000Z",
	}).Return(nil).Once()

	dbMock.ExpectQuery(regexp.QuoteMeta("FROM tickets t")).
		WithArgs(uint64(42)).
		WillReturnRows(scanRow("active", nil))
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET status = 'used'")).
		WithArgs(testNow, uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := s.Verify(context.Background(), ticketToken(t, s.Signer, 42))
	require.NoError(t, err)
	require.NoError(t, dbMock.ExpectationsWereMet())
	pub.AssertExpectations(t)

	assert.True(t, res.OK)
	assert.Equal(t, "Ticket accepted", res.Message)
	assert.Equal(t, uint64(42), res.TicketID)
	assert.Equal(t, "TIX-abc", res.TicketCode)
	assert.Equal(t, "ada@example.com", res.Attendee)
	require.NotNil(t, res.AttendeeName)
	assert.Equal(t, "Ada", *res.AttendeeName)
	require.NotNil(t, res.EventName)
	assert.Equal(t, "Spring Gala", *res.EventName)
	require.NotNil(t, res.SeatLabel)
	assert.Equal(t, "Section Main · Row C · Seat 4", *res.SeatLabel)
	assert.Equal(t, "2026-03-01T18:30:00.000Z", res.UsedAt)
}

func TestVerifyReplayReportsFirstAdmission(t *testing.T) {
	s, dbMock := newScanner(t)
	first := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	dbMock.ExpectQuery(regexp.QuoteMeta("FROM tickets t")).
		WillReturnRows(scanRow("used", first))

	_, err := s.Verify(context.Background(), ticketToken(t, s.Signer, 42))
	require.ErrorIs(t, err, ErrTicketUsed)
	require.NoError(t, dbMock.ExpectationsWereMet())

	var se *ScanError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Ticket already used at Sun, 01 Mar 2026 18:00:00 UTC", se.Message)
	require.NotNil(t, se.Ticket)
	assert.False(t, se.Ticket.OK)
	assert.Equal(t, "2026-03-01T18:00:00.000Z", se.Ticket.UsedAt)
	assert.Equal(t, "TIX-abc", se.Ticket.TicketCode)
}

func TestVerifyConcurrentScanAdmitsOnce(t *testing.T) {
	s, dbMock := newScanner(t)
	winner := testNow.Add(-time.Second)

	dbMock.ExpectQuery(regexp.QuoteMeta("FROM tickets t")).
		WillReturnRows(scanRow("active", nil))
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET status = 'used'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectQuery(regexp.QuoteMeta("FROM tickets t")).
		WillReturnRows(scanRow("used", winner))

	_, err := s.Verify(context.Background(), ticketToken(t, s.Signer, 42))
	require.ErrorIs(t, err, ErrTicketUsed)
	require.NoError(t, dbMock.ExpectationsWereMet())

	var se *ScanError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "2026-03-01T18:29:59.000Z", se.Ticket.UsedAt)
}

func TestVerifyCancelledTicket(t *testing.T) {
	s, dbMock := newScanner(t)
	dbMock.ExpectQuery(regexp.QuoteMeta("FROM tickets t")).
		WillReturnRows(scanRow("cancelled", nil))

	_, err := s.Verify(context.Background(), ticketToken(t, s.Signer, 42))
	require.ErrorIs(t, err, ErrTicketCancelled)

	var se *ScanError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Ticket has been cancelled", se.Message)
	require.NotNil(t, se.Ticket)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestVerifyUnknownStatusKeepsContext(t *testing.T) {
	s, dbMock := newScanner(t)
	dbMock.ExpectQuery(regexp.QuoteMeta("FROM tickets t")).
		WillReturnRows(scanRow("refunded", nil))

	_, err := s.Verify(context.Background(), ticketToken(t, s.Signer, 42))
	require.ErrorIs(t, err, ErrTicketInvalid)

	var se *ScanError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Ticket is not valid", se.Message)
	require.NotNil(t, se.Ticket)
	assert.Equal(t, "TIX-abc", se.Ticket.TicketCode)
	assert.Equal(t, "ada@example.com", se.Ticket.Attendee)
	require.NotNil(t, se.Ticket.SeatLabel)
	assert.Equal(t, "Section Main · Row C · Seat 4", *se.Ticket.SeatLabel)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestVerifyUnknownTicket(t *testing.T) {
	s, dbMock := newScanner(t)
	dbMock.ExpectQuery(regexp.QuoteMeta("FROM tickets t")).
		WillReturnRows(sqlmock.NewRows(scanCols))

	_, err := s.Verify(context.Background(), ticketToken(t, s.Signer, 99))
	require.ErrorIs(t, err, ErrTicketNotFound)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestVerifyRejectsBeforeTouchingStore(t *testing.T) {
	s, dbMock := newScanner(t)

	other, err := qrtoken.NewSigner([]byte("some-other-secret"))
	require.NoError(t, err)
	forged := ticketToken(t, other, 42)
	valid := ticketToken(t, s.Signer, 42)

	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "   ", ErrQRMissing},
		{"not json", "hello", ErrQRMalformed},
		{"truncated", `{"p":{"ticket_id":42}`, ErrQRMalformed},
		{"missing sig", `{"p":{"ticket_id":42}}`, ErrBadSignature},
		{"wrong secret", forged, ErrBadSignature},
		{"tampered", strings.Replace(valid, `"ticket_id":42`, `"ticket_id":43`, 1), ErrBadSignature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Verify(context.Background(), tc.raw)
			assert.ErrorIs(t, err, tc.want)
			var se *ScanError
			require.ErrorAs(t, err, &se)
			assert.Nil(t, se.Ticket)
		})
	}
	require.NoError(t, dbMock.ExpectationsWereMet())
}
