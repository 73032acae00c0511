package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/meshsight/meshsight/internal/core/domain"
)

// Subscriber consumes coverage events from NATS JetStream. Used by
// anything downstream of a computation, such as notification fan-out.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber sharing a NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeCompleted delivers coverage summaries as computations finish.
func (s *Subscriber) SubscribeCompleted(ctx context.Context, handler func(ctx context.Context, summary *domain.CoverageSummary) error) error {
	sub, err := s.js.Subscribe("coverage.completed.>", func(msg *nats.Msg) {
		var summary domain.CoverageSummary
		if err := json.Unmarshal(msg.Data, &summary); err != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, &summary); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("coverage-completed"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
