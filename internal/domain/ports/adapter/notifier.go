package adapter

import (
	"context"

	"prepvio-subscription/internal/domain/model"
)

// Notifier is fire-and-forget. Implementations must not block the caller.
type Notifier interface {
	Notify(userID, title, message string, meta map[string]any)
}

// NotificationSink delivers one notification to a channel.
type NotificationSink interface {
	Name() string
	Deliver(ctx context.Context, n *model.Notification) error
}
