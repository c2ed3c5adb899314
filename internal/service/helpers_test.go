package service

import (
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/qrtoken"
)

var (
	testNow = time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)

	seatCols   = []string{"id", "event_id", "section", "row_label", "seat_number", "row_idx", "col_idx", "status", "reserved_token", "reserved_until"}
	eventCols  = []string{"id", "name", "description", "poster_url", "starts_at", "ends_at", "performance_at", "capacity", "created_at"}
	scanCols   = []string{"id", "ticket_code", "status", "user_email", "user_name", "used_at", "event_id", "event_name", "section", "row_label", "seat_number"}
	emailCols  = []string{"id", "to_email", "to_name", "subject", "body", "attachments", "status", "tries", "last_attempt", "created_at"}
	fixedClock = func() time.Time { return testNow }
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func newSigner(t *testing.T) *qrtoken.Signer {
	t.Helper()
	s, err := qrtoken.NewSigner([]byte("test-qr-secret"))
	require.NoError(t, err)
	return s
}

// capture is a sqlmock argument matcher that records the string it sees.
type capture struct{ into *string }

func (c capture) Match(v driver.Value) bool {
	s, ok := v.(string)
	*c.into = s
	return ok
}

func seatRow(rows *sqlmock.Rows, id uint64, row string, rowIdx, colIdx int) *sqlmock.Rows {
	return rows.AddRow(int64(id), int64(7), "Main", row, int64(colIdx+1), rowIdx, colIdx, "available", nil, nil)
}
