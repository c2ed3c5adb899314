// Package repository holds the SQL access for events, seats, tickets, the
// outbound mail queue, analytics and accounts. The sentinel values below let
// the service and handler layers tell failure scenarios apart without
// inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrConflict signals that an operation cannot proceed because of
	// existing state, such as generating seats for an event that already
	// has a layout. Handlers translate it into HTTP 409.
	ErrConflict = errors.New("conflict")

	ErrEventNotFound  = errors.New("event not found")
	ErrTicketNotFound = errors.New("ticket not found")
	ErrUserNotFound   = errors.New("user not found")

	// ErrNoSeatAvailable is returned when an event has no effectively
	// available seat left.
	ErrNoSeatAvailable = errors.New("no available seat")

	ErrEmailExists = errors.New("email already exists")
)

// isDuplicateKey reports whether err is a MySQL unique-key violation (1062).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
