// Package push provides the publish/subscribe transports the catalog sync
// channel consumes. Delivery is best-effort: a broken stream just ends; no
// gap filling or replay is attempted.
package push

import "context"

// Subscription is one active topic subscription. Messages is closed when the
// subscription ends, whether by Close or by transport failure.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Subscriber opens subscriptions on a topic.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}
