package repository

import (
	"context"

	"prepvio-subscription/internal/domain/model"
)

type PromoRepository interface {
	Create(ctx context.Context, tx Tx, p *model.PromoCode) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.PromoCode, error)
	List(ctx context.Context, tx Tx) ([]*model.PromoCode, error)
	Deactivate(ctx context.Context, tx Tx, code string) error
	CountUserUsages(ctx context.Context, tx Tx, code, userID string) (int, error)
	// RecordUsage appends u to the usage log and atomically increments the
	// usage counter unless the limit is reached. Reports whether it counted.
	RecordUsage(ctx context.Context, tx Tx, u model.PromoUsage) (bool, error)
	ListUsages(ctx context.Context, tx Tx, code string) ([]model.PromoUsage, error)
}
