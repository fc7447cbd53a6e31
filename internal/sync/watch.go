package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/lucas6028/silver-server/internal/mq"
)

// Subscriber is the slice of the message bus a watcher needs. Watchers
// need fan-out delivery: every session must see every change event, so a
// competing-consumer subscription would starve concurrent sessions.
type Subscriber interface {
	SubscribeBroadcast(ctx context.Context, channel string, handler mq.Handler) error
}

// QueryFunc re-reads the watched scope from the backend.
type QueryFunc[T any] func(ctx context.Context) ([]T, error)

// Watch runs a live observation over one change channel. It emits an
// initial snapshot immediately, then a fresh snapshot after every change
// event accepted by match (nil matches everything). Bursts of events
// coalesce into a single re-query. Query and subscription failures are
// logged and degrade to an empty snapshot rather than tearing the session
// down. The returned channel closes when ctx is cancelled.
func Watch[T any](ctx context.Context, bus Subscriber, channel string, match func(mq.Message) bool, query QueryFunc[T], log *zap.SugaredLogger) <-chan []T {
	out := make(chan []T, 1)
	wake := make(chan bool, 1)

	signal := func(degraded bool) {
		select {
		case wake <- degraded:
		default:
		}
	}

	go func() {
		err := bus.SubscribeBroadcast(ctx, channel, func(_ context.Context, msg mq.Message) error {
			if match == nil || match(msg) {
				signal(false)
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			log.Warnw("watch subscription failed", "channel", channel, "error", err)
			signal(true)
		}
	}()

	go func() {
		defer close(out)
		emit := func(degraded bool) {
			var items []T
			if !degraded {
				var err error
				items, err = query(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warnw("watch query failed", "channel", channel, "error", err)
					items = nil
				}
			}
			if items == nil {
				items = []T{}
			}
			select {
			case out <- items:
			case <-ctx.Done():
			}
		}

		emit(false)
		for {
			select {
			case <-ctx.Done():
				return
			case degraded := <-wake:
				emit(degraded)
			}
		}
	}()

	return out
}
