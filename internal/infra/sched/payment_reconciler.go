package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/ports/repository"
	"prepvio-subscription/internal/infra/metrics"
	"prepvio-subscription/internal/usecase"
)

const reconcileLockKey = "lock:payment-reconciler"

// Locker guards a tick so only one instance reconciles at a time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// PaymentReconciler periodically asks the gateway about orders that stayed
// pending and redeems the ones that were captured. This covers clients that
// paid but never called verify and webhooks that never arrived.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	payments   repository.PaymentRepository
	locker     Locker
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, payments repository.PaymentRepository, locker Locker, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, payments: payments, locker: locker, interval: interval, staleAfter: staleAfter, batch: batch, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass and returns how many orders were redeemed.
func (w *PaymentReconciler) Tick(ctx context.Context) int {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, reconcileLockKey, w.interval)
		if err != nil {
			if errors.Is(err, domain.ErrLockNotAcquired) {
				metrics.IncReconcile("skipped")
				w.log.Debug().Msg("another instance holds the reconcile lock")
			} else {
				w.log.Warn().Err(err).Msg("reconcile lock error")
			}
			return 0
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), reconcileLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("reconcile unlock error")
			}
		}()
	}

	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending payments")
		return 0
	}

	redeemed := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		_, ok, err := w.uc.Reconcile(ctx, p.OrderID)
		switch {
		case err != nil:
			metrics.IncReconcile("error")
			w.log.Warn().Err(err).Str("order_id", p.OrderID).Msg("reconcile failed")
		case ok:
			redeemed++
			metrics.IncReconcile("redeemed")
			w.log.Info().Str("order_id", p.OrderID).Str("user_id", p.UserID).Msg("reconciled payment")
		default:
			metrics.IncReconcile("pending")
		}
	}
	return redeemed
}
