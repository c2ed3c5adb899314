package service

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/qrtoken"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type publisherMock struct{ mock.Mock }

func (m *publisherMock) PublishTicketIssued(ctx context.Context, ev queue.TicketIssuedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *publisherMock) PublishTicketScanned(ctx context.Context, ev queue.TicketScannedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func newIssuer(t *testing.T) (*Issuer, sqlmock.Sqlmock) {
	db, dbMock := newMockDB(t)
	codes := 0
	return &Issuer{
		DB:        db,
		Events:    repository.NewEventRepo(db),
		Seats:     repository.NewSeatRepo(db),
		Tickets:   repository.NewTicketRepo(db),
		Emails:    repository.NewEmailQueueRepo(db),
		Signer:    newSigner(t),
		CIDDomain: "tickets.test",
		QRSize:    128,
		Now:       fixedClock,
		NewCode: func() string {
			codes++
			return "TIX-" + strings.Repeat("x", codes)
		},
		NewNonce: func() string { return "nonce-1" },
	}, dbMock
}

func TestIssueSignsAndStoresToken(t *testing.T) {
	s, dbMock := newIssuer(t)
	pub := &publisherMock{}
	s.Publisher = pub
	pub.On("PublishTicketIssued", mock.Anything, mock.MatchedBy(func(ev queue.TicketIssuedEvent) bool {
		return ev.TicketID == 42 && ev.SeatID == 311 && !ev.Bulk
	})).Return(nil).Once()

	var stored string
	dbMock.ExpectBegin()
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE seats SET status = 'sold'")).
		WithArgs(uint64(311), uint64(7), "", "", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec(regexp.QuoteMeta("INSERT INTO tickets")).
		WithArgs("TIX-x", "ada@example.com", "Ada", uint64(7), uint64(311), 25.0, "active").
		WillReturnResult(sqlmock.NewResult(42, 1))
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET qr_payload = ?")).
		WithArgs(capture{&stored}, uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	out, err := s.Issue(context.Background(), IssueRequest{
		EventID: 7, SeatID: 311, Email: " ada@example.com ", Name: "Ada", Price: 25,
	})
	require.NoError(t, err)
	require.NoError(t, dbMock.ExpectationsWereMet())
	pub.AssertExpectations(t)

	assert.Equal(t, uint64(42), out.TicketID)
	assert.Equal(t, "TIX-x", out.TicketCode)
	assert.True(t, strings.HasPrefix(out.QRDataURL, "data:image/png;base64,"))

	tok, err := qrtoken.Parse(stored)
	require.NoError(t, err)
	require.True(t, s.Signer.Verify(tok))
	p, err := qrtoken.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, qrtoken.Payload{
		TicketID: 42, EventID: 7, SeatID: 311,
		IssuedAt: "2026-03-01T18:30:00.000Z", Nonce: "nonce-1",
	}, p)
}

func TestIssueRefusesSeatAlreadySold(t *testing.T) {
	s, dbMock := newIssuer(t)

	dbMock.ExpectBegin()
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE seats SET status = 'sold'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectRollback()

	_, err := s.Issue(context.Background(), IssueRequest{EventID: 7, SeatID: 311, Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrSeatUnavailable)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestIssuePassesReservationToken(t *testing.T) {
	s, dbMock := newIssuer(t)

	dbMock.ExpectBegin()
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE seats SET status = 'sold'")).
		WithArgs(uint64(311), uint64(7), "hold-token", "hold-token", testNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectRollback()

	_, err := s.Issue(context.Background(), IssueRequest{EventID: 7, SeatID: 311, Email: "a@b.c", ReservedToken: "hold-token"})
	assert.ErrorIs(t, err, ErrSeatUnavailable)
	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestIssueValidation(t *testing.T) {
	s, dbMock := newIssuer(t)
	var ve *ValidationError

	for _, req := range []IssueRequest{
		{SeatID: 1, Email: "a@b.c"},
		{EventID: 1, Email: "a@b.c"},
		{EventID: 1, SeatID: 1, Email: "   "},
		{EventID: 1, SeatID: 1, Email: "a@b.c", Price: -1},
	} {
		_, err := s.Issue(context.Background(), req)
		assert.ErrorAs(t, err, &ve, "%+v", req)
	}
	require.NoError(t, dbMock.ExpectationsWereMet())
}
