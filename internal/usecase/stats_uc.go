package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"prepvio-subscription/internal/domain/ports/repository"
	"prepvio-subscription/internal/infra/logging"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	Revenue(ctx context.Context) (week, month, year decimal.Decimal, err error)
	ActiveByPlan(ctx context.Context) (map[string]int, error)
}

type statsUC struct {
	users    repository.UserRepository
	payments repository.PaymentRepository

	log *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, payments repository.PaymentRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{users: users, payments: payments, log: logger}
}

func (s *statsUC) Revenue(ctx context.Context) (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	defer logging.TraceDuration(s.log, "StatsUC.Revenue")()

	w, err := s.payments.SumByPeriod(ctx, repository.NoTX, "week")
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	m, err := s.payments.SumByPeriod(ctx, repository.NoTX, "month")
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	y, err := s.payments.SumByPeriod(ctx, repository.NoTX, "year")
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	return w, m, y, nil
}

func (s *statsUC) ActiveByPlan(ctx context.Context) (map[string]int, error) {
	defer logging.TraceDuration(s.log, "StatsUC.ActiveByPlan")()
	return s.users.CountActiveByPlan(ctx, repository.NoTX)
}
