package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkUsedRequiresActiveTicket(t *testing.T) {
	db, mock := newExactDB(t)

	mock.ExpectExec(`UPDATE tickets SET status = 'used', used_at = ? WHERE id = ? AND status = 'active'`).
		WithArgs(testNow, uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE tickets SET status = 'used', used_at = ? WHERE id = ? AND status = 'active'`).
		WithArgs(testNow, uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTicketRepo(db)
	n, err := repo.MarkUsed(context.Background(), 42, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.MarkUsed(context.Background(), 42, testNow)
	require.NoError(t, err)
	assert.Zero(t, n, "second admission finds the ticket no longer active")
	require.NoError(t, mock.ExpectationsWereMet())
}
