package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/repository"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

const notificationPage = 20

type NotificationUseCase interface {
	// List returns the newest in-app notifications of a user.
	List(ctx context.Context, userID string) ([]*model.Notification, error)
}

type notificationUC struct {
	notes repository.NotificationRepository
	log   *zerolog.Logger
}

func NewNotificationUseCase(notes repository.NotificationRepository, logger *zerolog.Logger) *notificationUC {
	return &notificationUC{notes: notes, log: logger}
}

func (n *notificationUC) List(ctx context.Context, userID string) ([]*model.Notification, error) {
	return n.notes.ListByUser(ctx, repository.NoTX, userID, notificationPage)
}
