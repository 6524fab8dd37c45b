package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

const userColumns = `id, email, name, sub_active, plan_id, plan_name, start_date, end_date,
  interviews_total, interviews_used, interviews_remaining, created_at, updated_at`

func (r *userRepo) Ensure(ctx context.Context, tx repository.Tx, u *model.User) (*model.User, error) {
	const q = `
INSERT INTO users (id, email, name, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (id) DO NOTHING;`
	if _, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.Name, u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return r.FindByID(ctx, tx, u.ID)
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) SaveSubscription(ctx context.Context, tx repository.Tx, userID string, s model.Subscription) error {
	const q = `
UPDATE users
   SET sub_active=$2, plan_id=$3, plan_name=$4, start_date=$5, end_date=$6,
       interviews_total=$7, interviews_used=$8, interviews_remaining=$9, updated_at=NOW()
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, s.Active, s.PlanID, s.PlanName,
		nullTime(s.StartDate), nullTime(s.EndDate), s.InterviewsTotal, s.InterviewsUsed, s.InterviewsRemaining)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepo) Deactivate(ctx context.Context, tx repository.Tx, userID string) (bool, error) {
	const q = `UPDATE users SET sub_active=FALSE, updated_at=NOW() WHERE id=$1 AND sub_active;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *userRepo) ConsumeCredit(ctx context.Context, tx repository.Tx, userID string, now time.Time) (int, bool, error) {
	const q = `
UPDATE users
   SET interviews_used = interviews_used + 1,
       interviews_remaining = interviews_remaining - 1,
       updated_at = NOW()
 WHERE id = $1
   AND sub_active
   AND interviews_remaining > 0
   AND (end_date IS NULL OR end_date >= $2)
RETURNING interviews_remaining;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, now)
	if err != nil {
		return 0, false, err
	}
	var remaining int
	if err := row.Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, mapErr(err)
	}
	return remaining, true, nil
}

func (r *userRepo) CountActiveByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	const q = `SELECT plan_id, COUNT(*) FROM users WHERE sub_active GROUP BY plan_id;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			plan string
			n    int
		)
		if err := rows.Scan(&plan, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[plan] = n
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u          model.User
		start, end *time.Time
	)
	s := &u.Subscription
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &s.Active, &s.PlanID, &s.PlanName, &start, &end,
		&s.InterviewsTotal, &s.InterviewsUsed, &s.InterviewsRemaining, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	if start != nil {
		s.StartDate = *start
	}
	if end != nil {
		s.EndDate = *end
	}
	return &u, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
