package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/repository"
)

var _ repository.PromoRepository = (*promoRepo)(nil)

type promoRepo struct{ pool *pgxpool.Pool }

func NewPromoRepo(pool *pgxpool.Pool) *promoRepo {
	return &promoRepo{pool: pool}
}

const promoColumns = `id, code, description, discount_type, discount_value, max_discount, min_purchase_amount,
  applicable_plans, usage_limit, usage_count, per_user_limit, valid_from, valid_until, active, created_at, updated_at`

func (r *promoRepo) Create(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	const q = `INSERT INTO promo_codes (` + promoColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16);`

	var maxDiscount decimal.NullDecimal
	if p.MaxDiscount != nil {
		maxDiscount = decimal.NewNullDecimal(*p.MaxDiscount)
	}
	plans := p.ApplicablePlans
	if plans == nil {
		plans = []string{}
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Code, p.Description, string(p.DiscountType), p.DiscountValue, maxDiscount, p.MinPurchaseAmount,
		plans, p.UsageLimit, p.UsageCount, p.PerUserLimit, p.ValidFrom, p.ValidUntil, p.Active, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (r *promoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	q := `SELECT ` + promoColumns + ` FROM promo_codes WHERE code=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", code)
	if err != nil {
		return nil, err
	}
	return scanPromo(row)
}

func (r *promoRepo) List(ctx context.Context, tx repository.Tx) ([]*model.PromoCode, error) {
	const q = `SELECT ` + promoColumns + ` FROM promo_codes ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
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

func (r *promoRepo) Deactivate(ctx context.Context, tx repository.Tx, code string) error {
	const q = `UPDATE promo_codes SET active=FALSE, updated_at=NOW() WHERE code=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, code)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *promoRepo) CountUserUsages(ctx context.Context, tx repository.Tx, code, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM promo_usages WHERE code=$1 AND user_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, code, userID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

// RecordUsage logs the usage and bumps usage_count only while under the limit.
func (r *promoRepo) RecordUsage(ctx context.Context, tx repository.Tx, u model.PromoUsage) (bool, error) {
	const insert = `
INSERT INTO promo_usages (code, user_id, order_id, discount_applied, used_at)
VALUES ($1,$2,$3,$4,$5);`
	if _, err := execSQL(ctx, r.pool, tx, insert, u.Code, u.UserID, u.OrderID, u.DiscountApplied, u.UsedAt); err != nil {
		return false, mapErr(err)
	}

	const bump = `
UPDATE promo_codes
   SET usage_count = usage_count + 1, updated_at = NOW()
 WHERE code = $1
   AND (usage_limit IS NULL OR usage_count < usage_limit);`
	cmd, err := execSQL(ctx, r.pool, tx, bump, u.Code)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *promoRepo) ListUsages(ctx context.Context, tx repository.Tx, code string) ([]model.PromoUsage, error) {
	const q = `SELECT code, user_id, order_id, discount_applied, used_at FROM promo_usages WHERE code=$1 ORDER BY used_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.PromoUsage
	for rows.Next() {
		var u model.PromoUsage
		if err := rows.Scan(&u.Code, &u.UserID, &u.OrderID, &u.DiscountApplied, &u.UsedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func scanPromo(row pgx.Row) (*model.PromoCode, error) {
	var (
		p           model.PromoCode
		typ         string
		maxDiscount decimal.NullDecimal
	)
	if err := row.Scan(&p.ID, &p.Code, &p.Description, &typ, &p.DiscountValue, &maxDiscount, &p.MinPurchaseAmount,
		&p.ApplicablePlans, &p.UsageLimit, &p.UsageCount, &p.PerUserLimit, &p.ValidFrom, &p.ValidUntil,
		&p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	p.DiscountType = model.DiscountType(typ)
	if maxDiscount.Valid {
		m := maxDiscount.Decimal
		p.MaxDiscount = &m
	}
	return &p, nil
}
