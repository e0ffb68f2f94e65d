package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/orderfill-indexer/pkg/kafka/testutils"
)

func newTestProducer(t *testing.T, ctx context.Context) *Producer {
	t.Helper()
	cfg := ProducerConfig{Brokers: "localhost:9092", ClientID: "test"}
	producer, err := NewProducer(ctx, cfg.ConfigMap(), testutils.NewTestLogger(t))
	require.NoError(t, err)
	return producer
}

func TestProducer_Close_Idempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	producer := newTestProducer(t, ctx)

	producer.Close(time.Second)
	producer.Close(time.Second)
}

func TestProducer_Errors_ClosedAfterClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	producer := newTestProducer(t, ctx)

	errCh := producer.Errors()
	assert.Equal(t, 1, cap(errCh))

	producer.Close(time.Second)
	_, ok := <-errCh
	assert.False(t, ok, "error channel should be closed after Close()")
}

func TestProducer_Produce_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	producer := newTestProducer(t, ctx)
	defer producer.Close(time.Second)

	produceCtx, produceCancel := context.WithCancel(context.Background())
	produceCancel()

	err := producer.Produce(produceCtx, Msg{Topic: "orders-filled", Key: []byte("A"), Value: []byte("{}")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProducer_ContextCancellation_StopsGoroutines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	producer := newTestProducer(t, ctx)

	cancel()

	select {
	case <-producer.eventsDone:
	case <-time.After(2 * time.Second):
		t.Fatal("event monitor did not stop on context cancellation")
	}
	producer.Close(time.Second)
}

func TestHandleDeliveryEvent(t *testing.T) {
	t.Parallel()
	log := testutils.NewTestLogger(t)
	topic := "orders-filled"
	msg := testutils.NewTestMessage(topic, 0, 1, []byte("A"), nil)

	require.NoError(t, handleDeliveryEvent(log, msg, testutils.NewTestMessage(topic, 2, 10, nil, nil)))

	failed := testutils.NewTestMessage(topic, 0, 1, nil, nil)
	deliveryErr := cKafka.NewError(cKafka.ErrMsgTimedOut, "timed out", false)
	failed.TopicPartition.Error = deliveryErr
	err := handleDeliveryEvent(log, msg, failed)
	require.Error(t, err)
	var kErr cKafka.Error
	require.True(t, errors.As(err, &kErr))
	assert.Equal(t, cKafka.ErrMsgTimedOut, kErr.Code())

	err = handleDeliveryEvent(log, msg, cKafka.Stats{})
	require.Error(t, err)
}

func TestToHeaders(t *testing.T) {
	t.Parallel()
	assert.Nil(t, toHeaders(nil))

	h := toHeaders(map[string]string{"type": "order_filled"})
	require.Len(t, h, 1)
	assert.Equal(t, "type", h[0].Key)
	assert.Equal(t, []byte("order_filled"), h[0].Value)
}
