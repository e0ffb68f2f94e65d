package kafka

import (
	"context"
	"fmt"

	"github.com/ava-labs/orderfill-indexer/internal/types"
	"github.com/ava-labs/orderfill-indexer/pkg/kafka/message"
)

// MsgProducer produces a single message synchronously.
type MsgProducer interface {
	Produce(ctx context.Context, msg Msg) error
}

// OrderPublisher publishes stored orders as order_filled envelopes keyed by tx hash,
// so every fill of a transaction lands on the same partition.
type OrderPublisher struct {
	producer MsgProducer
	topic    string
}

// NewOrderPublisher returns a publisher writing to topic.
func NewOrderPublisher(producer MsgProducer, topic string) *OrderPublisher {
	return &OrderPublisher{producer: producer, topic: topic}
}

func (p *OrderPublisher) PublishOrder(ctx context.Context, o *types.OrderFilled) error {
	env, err := message.NewOrderFilled(o)
	if err != nil {
		return err
	}
	value, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode envelope for %s: %w", o.TxHash, err)
	}
	return p.producer.Produce(ctx, Msg{
		Topic: p.topic,
		Key:   []byte(o.TxHash),
		Value: value,
		Headers: map[string]string{
			"type":    env.Type,
			"version": fmt.Sprint(env.Version),
		},
	})
}
