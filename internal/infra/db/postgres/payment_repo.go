package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, order_id, receipt, provider, plan_id, currency, amount,
  pricing_kind, original_amount, base_amount, upgrade_discount, previous_plan_id,
  promo_code, discount_amount, status, payment_id, signature, created_at, paid_at`

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20);`

	var (
		promoCode *string
		discount  decimal.NullDecimal
	)
	if p.Promo != nil {
		promoCode = &p.Promo.Code
		discount = decimal.NewNullDecimal(p.Promo.DiscountAmount)
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.OrderID, p.Receipt, p.Provider, p.PlanID, p.Currency, p.Amount,
		string(p.Pricing.Kind), p.Pricing.OriginalAmount, p.Pricing.BaseAmount, p.Pricing.UpgradeDiscount, p.Pricing.PreviousPlanID,
		promoCode, discount, string(p.Status), p.PaymentID, p.Signature, p.CreatedAt, p.PaidAt)
	return mapErr(err)
}

func (r *paymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// MarkSuccessIfPending atomically moves a pending order to success.
func (r *paymentRepo) MarkSuccessIfPending(ctx context.Context, tx repository.Tx, orderID, paymentID, signature string, paidAt time.Time) (bool, error) {
	const q = `
UPDATE payments
   SET status = 'success',
       payment_id = $2,
       signature = $3,
       paid_at = $4
 WHERE order_id = $1
   AND status = 'pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, orderID, paymentID, signature, paidAt)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) ListSuccessfulByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PaymentRecord, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE user_id=$1 AND status='success' ORDER BY paid_at DESC;`
	return r.list(ctx, tx, q, userID)
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

// SumByPeriod sums redeemed amounts since the start of the current week, month or year.
func (r *paymentRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (decimal.Decimal, error) {
	switch period {
	case "week", "month", "year":
	default:
		return decimal.Zero, fmt.Errorf("%w: period %q", domain.ErrInvalidArgument, period)
	}
	const q = `SELECT COALESCE(SUM(amount),0) FROM payments WHERE status='success' AND paid_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return decimal.Zero, err
	}
	var sum decimal.Decimal
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PaymentRecord, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func scanPayment(row pgx.Row) (*model.PaymentRecord, error) {
	var (
		p         model.PaymentRecord
		kind      string
		status    string
		promoCode *string
		discount  decimal.NullDecimal
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.OrderID, &p.Receipt, &p.Provider, &p.PlanID, &p.Currency, &p.Amount,
		&kind, &p.Pricing.OriginalAmount, &p.Pricing.BaseAmount, &p.Pricing.UpgradeDiscount, &p.Pricing.PreviousPlanID,
		&promoCode, &discount, &status, &p.PaymentID, &p.Signature, &p.CreatedAt, &p.PaidAt); err != nil {
		return nil, scanErr(err)
	}
	p.Pricing.Kind = model.PricingKind(kind)
	p.Status = model.PaymentStatus(status)
	if promoCode != nil {
		p.Promo = &model.PromoApplication{
			Code:           *promoCode,
			DiscountAmount: discount.Decimal,
			FinalAmount:    p.Amount,
		}
	}
	return &p, nil
}
