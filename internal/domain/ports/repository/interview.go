package repository

import (
	"context"

	"prepvio-subscription/internal/domain/model"
)

type InterviewRepository interface {
	Record(ctx context.Context, tx Tx, a *model.InterviewAttempt) error
	ListRecent(ctx context.Context, tx Tx, userID string, limit int) ([]*model.InterviewAttempt, error)
}
