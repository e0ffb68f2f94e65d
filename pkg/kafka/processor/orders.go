package processor

import (
	"context"
	"errors"
	"fmt"

	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/ava-labs/orderfill-indexer/internal/types"
	"github.com/ava-labs/orderfill-indexer/pkg/data"
	"github.com/ava-labs/orderfill-indexer/pkg/kafka/message"
)

// OrderInserter stores a single order.
type OrderInserter interface {
	InsertOrder(ctx context.Context, o *types.OrderFilled) error
}

// OrderProcessor stores order_filled envelopes. Redelivered orders are
// already stored, so duplicates count as success.
type OrderProcessor struct {
	store OrderInserter
	log   *zap.SugaredLogger
}

func NewOrderProcessor(store OrderInserter, log *zap.SugaredLogger) *OrderProcessor {
	return &OrderProcessor{store: store, log: log}
}

func (p *OrderProcessor) Process(ctx context.Context, msg *cKafka.Message) error {
	env, err := message.Open(msg.Value)
	if err != nil {
		return err
	}
	o, err := env.OrderFilled()
	if err != nil {
		return err
	}

	err = p.store.InsertOrder(ctx, o)
	switch {
	case errors.Is(err, data.ErrDuplicateOrder):
		p.log.Debugw("order already stored", "tx_hash", o.TxHash)
		return nil
	case err != nil:
		return fmt.Errorf("failed to store order %s: %w", o.TxHash, err)
	}
	p.log.Debugw("order mirrored", "tx_hash", o.TxHash, "height", o.Height)
	return nil
}
