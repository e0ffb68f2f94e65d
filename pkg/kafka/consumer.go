package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/ava-labs/orderfill-indexer/pkg/kafka/processor"
	"github.com/ava-labs/orderfill-indexer/pkg/metrics"
)

// Consumer replays order_filled messages into a store, one message at a time.
// The offset of a message is committed only after it was stored or sent to
// the DLQ, so delivery is at least once.
type Consumer struct {
	processor processor.Processor
	consumer  *cKafka.Consumer
	dlq       *Producer
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics
	cfg       ConsumerConfig

	// seams for tests
	commit     func(*cKafka.Message) error
	produceDLQ func(context.Context, Msg) error

	logsDone chan struct{}
	doneCh   chan struct{}
}

// NewConsumer creates a consumer subscribed on Start. A DLQ producer is
// created when cfg.DLQTopic is set.
func NewConsumer(
	ctx context.Context,
	log *zap.SugaredLogger,
	cfg ConsumerConfig,
	p processor.Processor,
	m *metrics.Metrics,
) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid consumer config: %w", err)
	}

	kc, err := cKafka.NewConsumer(cfg.ConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	c := &Consumer{
		processor: p,
		consumer:  kc,
		log:       log,
		metrics:   m,
		cfg:       cfg,
		logsDone:  make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	c.commit = func(msg *cKafka.Message) error {
		_, err := kc.CommitMessage(msg)
		return err
	}

	if cfg.DLQTopic != "" {
		dlq, err := NewProducer(ctx, cfg.DLQProducerConfig(), log)
		if err != nil {
			_ = kc.Close()
			return nil, fmt.Errorf("failed to create DLQ producer: %w", err)
		}
		c.dlq = dlq
		c.produceDLQ = dlq.Produce
	}
	return c, nil
}

// Start consumes until ctx is canceled, a fatal Kafka error occurs, or a
// message can neither be processed nor dead-lettered.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cfg.EnableLogs {
		go c.printKafkaLogs(ctx)
	} else {
		close(c.logsDone)
	}

	if err := c.consumer.SubscribeTopics([]string{c.cfg.Topic}, nil); err != nil {
		return errors.Join(fmt.Errorf("failed to subscribe to topic %s: %w", c.cfg.Topic, err), c.close())
	}
	c.log.Infow("consumer started", "topic", c.cfg.Topic, "group", c.cfg.GroupID, "dlq", c.cfg.DLQTopic)

	var runErr error
	for runErr == nil {
		if ctx.Err() != nil {
			c.log.Info("context done, shutting down consumer")
			break
		}
		if c.dlq != nil {
			select {
			case err := <-c.dlq.Errors():
				if err != nil {
					runErr = fmt.Errorf("DLQ producer failed: %w", err)
					continue
				}
			default:
			}
		}

		ev := c.consumer.Poll(int(DefaultPollTimeout.Milliseconds()))
		switch e := ev.(type) {
		case nil:
		case *cKafka.Message:
			runErr = c.handleMessage(ctx, e)
		case cKafka.Error:
			if e.IsFatal() {
				runErr = fmt.Errorf("fatal kafka error: %w", e)
			} else {
				c.log.Warnw("kafka error (non-fatal)", "error", e)
			}
		default:
			c.log.Debugw("ignoring kafka event", "event", e)
		}
	}

	if err := c.close(); err != nil {
		c.log.Errorw("failed to close consumer", "error", err)
		runErr = errors.Join(runErr, err)
	}
	c.log.Info("consumer shutdown complete")
	if ctx.Err() != nil && errors.Is(runErr, ctx.Err()) {
		return nil
	}
	return runErr
}

// handleMessage processes msg, dead-letters it on failure, then commits its offset.
func (c *Consumer) handleMessage(ctx context.Context, msg *cKafka.Message) error {
	start := time.Now()
	err := c.processor.Process(ctx, msg)
	c.metrics.RecordMirrored(err, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warnw("failed to process message",
			"topic", *msg.TopicPartition.Topic,
			"partition", msg.TopicPartition.Partition,
			"offset", msg.TopicPartition.Offset,
			"error", err,
		)
		if dlqErr := c.publishToDLQ(ctx, msg, err); dlqErr != nil {
			return dlqErr
		}
	}

	if err := c.commit(msg); err != nil {
		return fmt.Errorf("failed to commit offset %v: %w", msg.TopicPartition, err)
	}
	return nil
}

func (c *Consumer) publishToDLQ(ctx context.Context, msg *cKafka.Message, cause error) error {
	if c.produceDLQ == nil {
		return fmt.Errorf("no DLQ configured: %w", cause)
	}

	err := c.produceDLQ(ctx, Msg{
		Topic: c.cfg.DLQTopic,
		Key:   msg.Key,
		Value: msg.Value,
		Headers: map[string]string{
			"error":          cause.Error(),
			"original_topic": *msg.TopicPartition.Topic,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to produce to DLQ: %w", err)
	}

	c.log.Infow("published message to DLQ",
		"originalTopic", *msg.TopicPartition.Topic,
		"originalPartition", msg.TopicPartition.Partition,
		"originalOffset", msg.TopicPartition.Offset,
		"dlqTopic", c.cfg.DLQTopic,
	)
	return nil
}

func (c *Consumer) close() error {
	close(c.doneCh)
	<-c.logsDone
	if c.dlq != nil {
		c.dlq.Close(DefaultFlushTimeout)
	}
	return c.consumer.Close()
}

func (c *Consumer) printKafkaLogs(ctx context.Context) {
	defer close(c.logsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.doneCh:
			return
		case log, ok := <-c.consumer.Logs():
			if !ok {
				return
			}
			c.log.Debugw("librdkafka consumer", "level", log.Level, "tag", log.Tag, "message", log.Message)
		}
	}
}
