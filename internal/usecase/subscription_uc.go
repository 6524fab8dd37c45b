package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/repository"
	"prepvio-subscription/internal/infra/logging"
	"prepvio-subscription/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

const recentAttempts = 5

// SubscriptionUseCase spends interview credits and reports subscription state.
type SubscriptionUseCase interface {
	// ConsumeInterviewCredit spends one credit and returns how many remain.
	ConsumeInterviewCredit(ctx context.Context, userID string) (int, error)
	// Status is read-only. Expiry is only enforced by ConsumeInterviewCredit.
	Status(ctx context.Context, userID string) (*InterviewStatus, error)
}

type InterviewStatus struct {
	Subscription model.Subscription
	Expired      bool
	Attempts     []*model.InterviewAttempt
}

type subscriptionUC struct {
	users    repository.UserRepository
	attempts repository.InterviewRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewSubscriptionUseCase(users repository.UserRepository, attempts repository.InterviewRepository, tm repository.TransactionManager, logger *zerolog.Logger) *subscriptionUC {
	return &subscriptionUC{users: users, attempts: attempts, tm: tm, log: logger}
}

func (u *subscriptionUC) ConsumeInterviewCredit(ctx context.Context, userID string) (int, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.ConsumeInterviewCredit")()
	l := logging.With(ctx, u.log)

	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.NotFound("User not found")
		}
		return 0, err
	}

	sub := user.Subscription
	if !sub.Active {
		metrics.IncInterviewRejected(string(domain.ReasonRequiresPayment))
		return 0, domain.Eligibility(domain.ReasonRequiresPayment, "No active subscription")
	}
	now := time.Now().UTC()
	if sub.Expired(now) {
		if _, err := u.users.Deactivate(ctx, repository.NoTX, userID); err != nil {
			return 0, err
		}
		metrics.IncInterviewRejected("expired")
		l.Info().Str("plan_id", sub.PlanID).Time("end_date", sub.EndDate).Msg("subscription expired on access")
		return 0, domain.Eligibility(domain.ReasonRequiresPayment, "Subscription expired")
	}
	if sub.InterviewsRemaining <= 0 {
		metrics.IncInterviewRejected(string(domain.ReasonNeedsUpgrade))
		return 0, domain.Eligibility(domain.ReasonNeedsUpgrade, "No interview credits remaining")
	}

	var remaining int
	err = u.tm.WithTx(ctx, repository.LedgerWrite, func(ctx context.Context, tx repository.Tx) error {
		left, ok, err := u.users.ConsumeCredit(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			// a concurrent request spent the last credit
			return domain.Eligibility(domain.ReasonNeedsUpgrade, "No interview credits remaining")
		}
		remaining = left
		return u.attempts.Record(ctx, tx, &model.InterviewAttempt{
			ID:             uuid.NewString(),
			UserID:         userID,
			PlanID:         sub.PlanID,
			StartedAt:      now,
			RemainingAfter: left,
		})
	})
	if err != nil {
		return 0, err
	}

	metrics.IncInterviewConsumed(sub.PlanID)
	l.Debug().Int("remaining", remaining).Msg("interview credit consumed")
	return remaining, nil
}

func (u *subscriptionUC) Status(ctx context.Context, userID string) (*InterviewStatus, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.Status")()

	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound("User not found")
		}
		return nil, err
	}
	attempts, err := u.attempts.ListRecent(ctx, repository.NoTX, userID, recentAttempts)
	if err != nil {
		return nil, err
	}
	return &InterviewStatus{
		Subscription: user.Subscription,
		Expired:      user.Subscription.Active && user.Subscription.Expired(time.Now().UTC()),
		Attempts:     attempts,
	}, nil
}
