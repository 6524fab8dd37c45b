package worker

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/adapter"
	"prepvio-subscription/internal/infra/metrics"
)

var _ adapter.Notifier = (*Dispatcher)(nil)

const sinkTimeout = 5 * time.Second

// Dispatcher fans notifications out to every sink on the pool.
// Notify never blocks; when the queue is full the notification is dropped.
type Dispatcher struct {
	pool  *Pool
	sinks []adapter.NotificationSink
	log   *zerolog.Logger
}

func NewDispatcher(pool *Pool, logger *zerolog.Logger, sinks ...adapter.NotificationSink) *Dispatcher {
	return &Dispatcher{pool: pool, sinks: sinks, log: logger}
}

func (d *Dispatcher) Notify(userID, title, message string, meta map[string]any) {
	n := &model.Notification{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Meta:      meta,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.pool.Submit(func(ctx context.Context) error {
		d.deliver(ctx, n)
		return nil
	}); err != nil {
		for _, s := range d.sinks {
			metrics.IncNotification(s.Name(), "dropped")
		}
		d.log.Warn().Err(err).Str("user_id", userID).Str("title", title).Msg("notification dropped")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n *model.Notification) {
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		err := s.Deliver(sctx, n)
		cancel()
		if err != nil {
			metrics.IncNotification(s.Name(), "failed")
			d.log.Warn().Err(err).Str("sink", s.Name()).Str("notification_id", n.ID).Msg("notification delivery failed")
			continue
		}
		metrics.IncNotification(s.Name(), "sent")
	}
}
