package repository

import (
	"context"
	"time"

	"prepvio-subscription/internal/domain/model"
)

type UserRepository interface {
	// Ensure inserts u when no user with u.ID exists and returns the stored user.
	Ensure(ctx context.Context, tx Tx, u *model.User) (*model.User, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	SaveSubscription(ctx context.Context, tx Tx, userID string, s model.Subscription) error
	// Deactivate turns an active subscription off. Reports whether a row changed.
	Deactivate(ctx context.Context, tx Tx, userID string) (bool, error)
	// ConsumeCredit atomically spends one credit if the subscription is active,
	// not expired at now and has credits left. Returns the remaining count.
	ConsumeCredit(ctx context.Context, tx Tx, userID string, now time.Time) (remaining int, ok bool, err error)
	CountActiveByPlan(ctx context.Context, tx Tx) (map[string]int, error)
}
