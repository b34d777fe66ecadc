package push

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/serhatkrkmz54/eklinik-v2/pkg/logging"
)

// WebsocketSubscriber subscribes to topics over the broker's websocket
// endpoint. Each subscription is its own connection: dial, send a subscribe
// frame, then stream text frames until the peer or caller closes.
type WebsocketSubscriber struct {
	endpoint string
	dialer   *websocket.Dialer
	logger   *logging.Logger
}

type subscribeFrame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

// NewWebsocketSubscriber creates a subscriber dialing the given ws/wss URL.
func NewWebsocketSubscriber(endpoint string, logger *logging.Logger) *WebsocketSubscriber {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebsocketSubscriber{
		endpoint: endpoint,
		dialer:   websocket.DefaultDialer,
		logger:   logger,
	}
}

func (s *WebsocketSubscriber) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("push: dial %s: %w", s.endpoint, err)
	}
	if err := conn.WriteJSON(subscribeFrame{Action: "subscribe", Topic: topic}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("push: subscribe %q: %w", topic, err)
	}

	sub := &wsSubscription{
		conn:     conn,
		messages: make(chan []byte),
		done:     make(chan struct{}),
		closing:  make(chan struct{}),
	}
	go sub.watch(ctx)
	go sub.pump(ctx, s.logger, topic)
	return sub, nil
}

type wsSubscription struct {
	conn     *websocket.Conn
	messages chan []byte
	// done is closed by pump when the read loop ends.
	done chan struct{}
	// closing is closed by Close so a send blocked on an absent consumer
	// still unblocks.
	closing   chan struct{}
	closeOnce sync.Once
}

func (s *wsSubscription) Messages() <-chan []byte { return s.messages }

func (s *wsSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.conn.Close()
}

// watch tears the connection down when the caller's context ends, which
// unblocks the read loop in pump.
func (s *wsSubscription) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		_ = s.conn.Close()
	case <-s.done:
	}
}

func (s *wsSubscription) pump(ctx context.Context, logger *logging.Logger, topic string) {
	defer close(s.messages)
	defer close(s.done)
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			// Read errors end the stream; the catalog simply stops
			// updating until the host resubscribes.
			logger.Debug("push: websocket subscription ended", "topic", topic, "error", err)
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		select {
		case s.messages <- data:
		case <-s.closing:
			return
		case <-ctx.Done():
			return
		}
	}
}
