package push

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/serhatkrkmz54/eklinik-v2/pkg/logging"
)

// RedisSubscriber subscribes to topics over Redis pub/sub.
type RedisSubscriber struct {
	client *redis.Client
	logger *logging.Logger
}

// NewRedisSubscriber creates a subscriber on an existing Redis client.
func NewRedisSubscriber(client *redis.Client, logger *logging.Logger) *RedisSubscriber {
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisSubscriber{client: client, logger: logger}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, topic)

	// Receive forces the SUBSCRIBE handshake so a dead broker fails here
	// instead of silently delivering nothing.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("push: subscribe %q: %w", topic, err)
	}

	sub := &redisSubscription{
		pubsub:   pubsub,
		messages: make(chan []byte),
	}
	go sub.pump(ctx, s.logger, topic)
	return sub, nil
}

type redisSubscription struct {
	pubsub   *redis.PubSub
	messages chan []byte
}

func (s *redisSubscription) Messages() <-chan []byte { return s.messages }

func (s *redisSubscription) Close() error { return s.pubsub.Close() }

func (s *redisSubscription) pump(ctx context.Context, logger *logging.Logger, topic string) {
	defer close(s.messages)
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.pubsub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				logger.Debug("push: redis subscription ended", "topic", topic)
				return
			}
			select {
			case s.messages <- []byte(msg.Payload):
			case <-ctx.Done():
				_ = s.pubsub.Close()
				return
			}
		}
	}
}
