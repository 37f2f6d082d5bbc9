package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/tavola-kitchen/api/internal/platform/textutil"
	"github.com/tavola-kitchen/api/internal/services"
)

// PubSubOrderPublisher hands submitted orders to the fulfilment pipeline over a Pub/Sub topic.
type PubSubOrderPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.OrderPublisher = (*PubSubOrderPublisher)(nil)

// NewPubSubOrderPublisher constructs a publisher for topic.
func NewPubSubOrderPublisher(topic *pubsub.Topic) (*PubSubOrderPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	return &PubSubOrderPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrder publishes the order as JSON and waits for the server-assigned message id.
func (p *PubSubOrderPublisher) PublishOrder(ctx context.Context, message services.OrderMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub order publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}

	attrs := textutil.NormalizeAttributes(map[string]string{
		"orderId":        message.OrderID,
		"sessionId":      message.SessionID,
		"fulfilment":     string(message.Order.Fulfilment),
		"idempotencyKey": message.IdempotencyKey,
	})

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order: %w", err)
	}
	return id, nil
}

// Ping reports whether the topic exists.
func (p *PubSubOrderPublisher) Ping(ctx context.Context) error {
	ok, err := p.topic.Exists(ctx)
	if err != nil {
		return fmt.Errorf("pubsub order publisher: %w", err)
	}
	if !ok {
		return fmt.Errorf("pubsub order publisher: topic %s not found", p.topic.ID())
	}
	return nil
}

// Stop flushes pending publishes.
func (p *PubSubOrderPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}
