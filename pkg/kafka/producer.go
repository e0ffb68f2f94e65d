package kafka

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const queueFullRetryDelay = time.Second

// terminalProduceErrors are the local produce failures that retrying cannot fix.
var terminalProduceErrors = map[kafka.ErrorCode]string{
	kafka.ErrBrokerNotAvailable: "broker not available",
	kafka.ErrInvalidMsgSize:     "invalid message size",
	kafka.ErrInvalidMsg:         "invalid message",
	kafka.ErrUnknownTopicOrPart: "unknown topic or partition",
	kafka.ErrAuthentication:     "authentication error",
}

// Msg is a record to produce. Headers are copied onto the Kafka message.
type Msg struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Producer publishes orders and dead letters synchronously: Produce returns
// once the broker acknowledged the record.
//
// Close must be called to stop the background event and log pumps and to
// flush anything still queued.
type Producer struct {
	client *kafka.Producer
	log    *zap.SugaredLogger

	errCh      chan error
	closing    chan struct{}
	eventsDone chan struct{}
	logsDone   chan struct{}
	closeOnce  sync.Once
}

// NewProducer creates a Producer from conf. ctx bounds the background pumps.
func NewProducer(ctx context.Context, conf *kafka.ConfigMap, log *zap.SugaredLogger) (*Producer, error) {
	client, err := kafka.NewProducer(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logsEnabled, err := conf.Get("go.logs.channel.enable", false)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read go.logs.channel.enable: %w", err)
	}

	p := &Producer{
		client:     client,
		log:        log,
		errCh:      make(chan error, 1),
		closing:    make(chan struct{}),
		eventsDone: make(chan struct{}),
		logsDone:   make(chan struct{}),
	}

	if enabled, _ := logsEnabled.(bool); enabled {
		go p.pumpLogs(ctx)
	} else {
		close(p.logsDone)
	}
	go p.pumpEvents(ctx)

	return p, nil
}

// Produce sends msg and waits for its delivery report. A full local queue is
// retried every second until ctx is done.
//
// When ctx ends first the record may still reach the topic; the mirror side
// treats redelivered orders as already stored.
func (p *Producer) Produce(ctx context.Context, msg Msg) error {
	record := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &msg.Topic, Partition: kafka.PartitionAny},
		Key:            msg.Key,
		Value:          msg.Value,
		Headers:        toHeaders(msg.Headers),
	}

	report := make(chan kafka.Event, 1)
	if err := p.enqueue(ctx, record, report); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-report:
		return handleDeliveryEvent(p.log, record, ev)
	}
}

// Close stops the pumps, flushes for at most timeout and closes the client.
// Records still queued after the timeout are lost. Only the first call has effect.
func (p *Producer) Close(timeout time.Duration) {
	p.closeOnce.Do(func() {
		p.log.Info("closing kafka producer")
		defer close(p.errCh)

		close(p.closing)
		<-p.eventsDone
		<-p.logsDone

		if pending := p.client.Flush(int(timeout.Milliseconds())); pending > 0 {
			p.log.Warnw("flush incomplete, records dropped", "pending", pending)
		}
		p.client.Close()
		p.log.Info("kafka producer closed")
	})
}

// Errors delivers at most one fatal client error and is closed by Close.
// After an error the producer must be closed and replaced.
func (p *Producer) Errors() <-chan error {
	return p.errCh
}

func (p *Producer) enqueue(ctx context.Context, record *kafka.Message, report chan kafka.Event) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := p.client.Produce(record, report)
		if err == nil {
			return nil
		}

		var kErr kafka.Error
		if !errors.As(err, &kErr) {
			return fmt.Errorf("failed to produce: %w", err)
		}
		if reason, ok := terminalProduceErrors[kErr.Code()]; ok {
			return fmt.Errorf("%s: %w", reason, err)
		}
		if kErr.Code() != kafka.ErrQueueFull {
			return fmt.Errorf("failed to produce: %w", err)
		}

		p.log.Warnw("producer queue full, retrying", "delay", queueFullRetryDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(queueFullRetryDelay):
		}
	}
}

// reportFatal hands err to Errors without blocking.
func (p *Producer) reportFatal(err error) {
	select {
	case p.errCh <- err:
	default:
		p.log.Warnw("fatal producer error dropped, one already pending", "error", err)
	}
}

func (p *Producer) pumpLogs(ctx context.Context) {
	defer close(p.logsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.closing:
			return
		case entry, ok := <-p.client.Logs():
			if !ok {
				return
			}
			p.log.Debugw("librdkafka", "level", entry.Level, "tag", entry.Tag, "message", entry.Message)
		}
	}
}

func (p *Producer) pumpEvents(ctx context.Context) {
	defer close(p.eventsDone)
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("producer event pump stopped by context")
			return
		case <-p.closing:
			return
		case ev, ok := <-p.client.Events():
			if !ok {
				p.reportFatal(errors.New("kafka producer event channel closed"))
				return
			}
			if fatal := p.handleEvent(ev); fatal != nil {
				p.reportFatal(fatal)
				return
			}
		}
	}
}

// handleEvent logs a client event and returns an error when the client is unusable.
func (p *Producer) handleEvent(ev kafka.Event) error {
	switch e := ev.(type) {
	case *kafka.Message:
		// delivery reports are routed to Produce; these are stragglers
		if e.TopicPartition.Error != nil {
			p.log.Errorw("record delivery failed", "partition", e.TopicPartition, "error", e.TopicPartition.Error)
		}
	case kafka.Stats:
		p.log.Infow("kafka stats", "stats", e.String())
	case kafka.Error:
		if e.IsFatal() || e.Code() == kafka.ErrAllBrokersDown {
			return fmt.Errorf("kafka producer unusable (code %#x): %w", e.Code(), e)
		}
		p.log.Warnw("non-fatal kafka error", "code", e.Code(), "error", e)
	default:
		p.log.Debugw("unhandled producer event", "event", e)
	}
	return nil
}

func handleDeliveryEvent(log *zap.SugaredLogger, record *kafka.Message, ev kafka.Event) error {
	delivered, ok := ev.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected delivery event: %T", ev)
	}
	if err := delivered.TopicPartition.Error; err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}

	log.Debugw("record delivered",
		"topic", *record.TopicPartition.Topic,
		"partition", delivered.TopicPartition.Partition,
		"offset", delivered.TopicPartition.Offset,
		"key", string(record.Key),
	)
	return nil
}

// toHeaders converts h in key order.
func toHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(h))
	for _, k := range slices.Sorted(maps.Keys(h)) {
		out = append(out, kafka.Header{Key: k, Value: []byte(h[k])})
	}
	return out
}
