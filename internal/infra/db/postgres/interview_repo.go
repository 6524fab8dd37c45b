package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/repository"
)

var _ repository.InterviewRepository = (*interviewRepo)(nil)

type interviewRepo struct{ pool *pgxpool.Pool }

func NewInterviewRepo(pool *pgxpool.Pool) *interviewRepo {
	return &interviewRepo{pool: pool}
}

func (r *interviewRepo) Record(ctx context.Context, tx repository.Tx, a *model.InterviewAttempt) error {
	const q = `
INSERT INTO interview_attempts (id, user_id, plan_id, started_at, remaining_after)
VALUES ($1,$2,$3,$4,$5);`
	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.UserID, a.PlanID, a.StartedAt, a.RemainingAfter)
	return mapErr(err)
}

func (r *interviewRepo) ListRecent(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.InterviewAttempt, error) {
	const q = `
SELECT id, user_id, plan_id, started_at, remaining_after
  FROM interview_attempts
 WHERE user_id=$1
 ORDER BY started_at DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.InterviewAttempt
	for rows.Next() {
		a := new(model.InterviewAttempt)
		if err := rows.Scan(&a.ID, &a.UserID, &a.PlanID, &a.StartedAt, &a.RemainingAfter); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
