package repository

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)

// exactSQL compares statements token by token, so every clause of the
// expected text has to be present in the executed one.
var exactSQL = sqlmock.QueryMatcherFunc(func(expected, actual string) error {
	if squash(expected) != squash(actual) {
		return fmt.Errorf("sql mismatch:\n  want: %s\n  got:  %s", squash(expected), squash(actual))
	}
	return nil
})

func squash(q string) string { return strings.Join(strings.Fields(q), " ") }

func newExactDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(exactSQL))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func beginTx(t *testing.T, db *sqlx.DB, mock sqlmock.Sqlmock) *sqlx.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := db.Beginx()
	require.NoError(t, err)
	return tx
}
