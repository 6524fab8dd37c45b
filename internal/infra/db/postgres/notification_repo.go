package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/repository"
)

var _ repository.NotificationRepository = (*notificationRepo)(nil)

type notificationRepo struct{ pool *pgxpool.Pool }

func NewNotificationRepo(pool *pgxpool.Pool) *notificationRepo {
	return &notificationRepo{pool: pool}
}

func (r *notificationRepo) Save(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	meta, err := json.Marshal(n.Meta)
	if err != nil || n.Meta == nil {
		meta = []byte("{}")
	}
	const q = `
INSERT INTO notifications (id, user_id, title, message, meta, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING;`
	_, err = execSQL(ctx, r.pool, tx, q, n.ID, n.UserID, n.Title, n.Message, meta, n.CreatedAt)
	return mapErr(err)
}

func (r *notificationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Notification, error) {
	const q = `
SELECT id, user_id, title, message, meta, created_at
  FROM notifications
 WHERE user_id=$1
 ORDER BY created_at DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		var (
			n    model.Notification
			meta []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &meta, &n.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &n.Meta)
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
