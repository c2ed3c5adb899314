package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type senderMock struct{ mock.Mock }

func (m *senderMock) Send(ctx context.Context, e model.OutboundEmail) error {
	return m.Called(ctx, e.ID).Error(0)
}

func newMailWorker(t *testing.T) (*MailWorker, *senderMock, sqlmock.Sqlmock) {
	db, dbMock := newMockDB(t)
	s := &senderMock{}
	return &MailWorker{
		DB:     db,
		Emails: repository.NewEmailQueueRepo(db),
		Sender: s,
		Now:    fixedClock,
	}, s, dbMock
}

func pendingRows(ids ...int64) *sqlmock.Rows {
	rows := sqlmock.NewRows(emailCols)
	for _, id := range ids {
		rows.AddRow(id, "ada@example.com", nil, "Your Ticket", "<p>hi</p>", nil, "pending", 0, nil, testNow)
	}
	return rows
}

func TestProcessPendingOutcomes(t *testing.T) {
	w, sender, dbMock := newMailWorker(t)

	dbMock.ExpectQuery(regexp.QuoteMeta("FROM email_queue")).
		WithArgs(DefaultMailBatch).
		WillReturnRows(pendingRows(1, 2, 3))

	// 1: delivered
	dbMock.ExpectBegin()
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE email_queue SET status = 'sending'")).
		WithArgs(testNow, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE email_queue SET status = ?")).
		WithArgs("sent", uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	// 2: claimed by another worker
	dbMock.ExpectBegin()
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE email_queue SET status = 'sending'")).
		WithArgs(testNow, uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbMock.ExpectRollback()

	// 3: transport failure is recorded and committed
	dbMock.ExpectBegin()
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE email_queue SET status = 'sending'")).
		WithArgs(testNow, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE email_queue SET status = ?")).
		WithArgs("failed", uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	sender.On("Send", mock.Anything, uint64(1)).Return(nil).Once()
	sender.On("Send", mock.Anything, uint64(3)).Return(errors.New("smtp down")).Once()

	stats, err := w.ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, MailStats{Pending: 3, Sent: 1, Failed: 1}, stats)
	require.NoError(t, dbMock.ExpectationsWereMet())
	sender.AssertExpectations(t)
	sender.AssertNotCalled(t, "Send", mock.Anything, uint64(2))
}

func TestProcessPendingEmptyQueue(t *testing.T) {
	w, sender, dbMock := newMailWorker(t)
	dbMock.ExpectQuery(regexp.QuoteMeta("FROM email_queue")).
		WithArgs(MaxMailBatch).
		WillReturnRows(pendingRows())

	stats, err := w.ProcessPending(context.Background(), 10000)
	require.NoError(t, err)
	assert.Equal(t, MailStats{}, stats)
	require.NoError(t, dbMock.ExpectationsWereMet())
	sender.AssertExpectations(t)
}

func TestRunStopsOnCancel(t *testing.T) {
	w, _, _ := newMailWorker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, w.Run(ctx, time.Hour))
}

func TestClampBatch(t *testing.T) {
	assert.Equal(t, DefaultMailBatch, ClampBatch(0))
	assert.Equal(t, DefaultMailBatch, ClampBatch(-3))
	assert.Equal(t, 25, ClampBatch(25))
	assert.Equal(t, MaxMailBatch, ClampBatch(MaxMailBatch))
	assert.Equal(t, MaxMailBatch, ClampBatch(MaxMailBatch+1))
}

func TestProcessPendingBoundsEachSend(t *testing.T) {
	w, sender, dbMock := newMailWorker(t)
	w.SendTimeout = time.Second

	dbMock.ExpectQuery(regexp.QuoteMeta("FROM email_queue")).
		WithArgs(DefaultMailBatch).
		WillReturnRows(pendingRows(1))
	dbMock.ExpectBegin()
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE email_queue SET status = 'sending'")).
		WithArgs(testNow, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE email_queue SET status = ?")).
		WithArgs("failed", uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	bounded := mock.MatchedBy(func(ctx context.Context) bool {
		dl, ok := ctx.Deadline()
		return ok && time.Until(dl) <= time.Second
	})
	sender.On("Send", bounded, uint64(1)).Return(context.DeadlineExceeded).Once()

	stats, err := w.ProcessPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, MailStats{Pending: 1, Failed: 1}, stats)
	require.NoError(t, dbMock.ExpectationsWereMet())
	sender.AssertExpectations(t)
}
