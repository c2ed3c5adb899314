package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// AccountStore is the part of the user repository the bootstrap needs.
type AccountStore interface {
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, email, password, role string, cost int) (uint64, error)
}

// EnsureAdmin creates the first ADMIN account when no user exists yet. It
// does nothing when email or password is empty or when accounts exist.
func EnsureAdmin(ctx context.Context, users AccountStore, email, password string, cost int, log logrus.FieldLogger) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return false, nil
	}
	n, err := users.Count(ctx)
	if err != nil || n > 0 {
		return false, err
	}
	id, err := users.Create(ctx, email, password, model.RoleAdmin, cost)
	if err != nil {
		return false, err
	}
	logOr(log).WithFields(logrus.Fields{"user_id": id, "email": email}).Info("bootstrap admin created")
	return true, nil
}
