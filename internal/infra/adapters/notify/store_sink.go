package notify

import (
	"context"

	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/adapter"
	"prepvio-subscription/internal/domain/ports/repository"
)

var _ adapter.NotificationSink = (*StoreSink)(nil)

// StoreSink persists notifications for the in-app inbox.
type StoreSink struct {
	repo repository.NotificationRepository
}

func NewStoreSink(repo repository.NotificationRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Deliver(ctx context.Context, n *model.Notification) error {
	return s.repo.Save(ctx, repository.NoTX, n)
}
