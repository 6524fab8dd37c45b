package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"prepvio-subscription/internal/domain/model"
)

type PaymentRepository interface {
	// Create appends a pending record. Duplicate order ids give domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, p *model.PaymentRecord) error
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.PaymentRecord, error)
	// MarkSuccessIfPending is the pending -> success compare-and-set.
	// It reports false when the record was not pending anymore.
	MarkSuccessIfPending(ctx context.Context, tx Tx, orderID, paymentID, signature string, paidAt time.Time) (bool, error)
	ListSuccessfulByUser(ctx context.Context, tx Tx, userID string) ([]*model.PaymentRecord, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error)
	SumByPeriod(ctx context.Context, tx Tx, period string) (decimal.Decimal, error)
}
