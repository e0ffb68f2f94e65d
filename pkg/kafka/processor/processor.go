// Package processor turns consumed Kafka messages into store writes.
package processor

import (
	"context"

	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Processor handles one consumed message. A returned error sends the message to the DLQ.
type Processor interface {
	Process(ctx context.Context, msg *cKafka.Message) error
}
