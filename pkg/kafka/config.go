package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	DefaultFlushTimeout = 15 * time.Second
	DefaultPollTimeout  = 100 * time.Millisecond
)

// SASLConfig holds optional SASL authentication settings. An empty Mechanism disables SASL.
type SASLConfig struct {
	Mechanism        string `env:"KAFKA_SASL_MECHANISM"`
	Username         string `env:"KAFKA_SASL_USERNAME"`
	Password         string `env:"KAFKA_SASL_PASSWORD"`
	SecurityProtocol string `env:"KAFKA_SECURITY_PROTOCOL" envDefault:"SASL_SSL"`
}

func (s SASLConfig) apply(cm kafka.ConfigMap) {
	if s.Mechanism == "" {
		return
	}
	cm["security.protocol"] = s.SecurityProtocol
	cm["sasl.mechanisms"] = s.Mechanism
	cm["sasl.username"] = s.Username
	cm["sasl.password"] = s.Password
}

// ProducerConfig configures the order publisher.
type ProducerConfig struct {
	Brokers           string        `env:"KAFKA_BROKERS"            envDefault:"localhost:9092"`
	Topic             string        `env:"KAFKA_TOPIC"              envDefault:"orders-filled"`
	ClientID          string        `env:"KAFKA_CLIENT_ID"          envDefault:"orderfill-indexer"`
	Partitions        int           `env:"KAFKA_TOPIC_PARTITIONS"   envDefault:"1"`
	ReplicationFactor int           `env:"KAFKA_REPLICATION_FACTOR" envDefault:"1"`
	FlushTimeout      time.Duration `env:"KAFKA_FLUSH_TIMEOUT"      envDefault:"15s"`
	EnableLogs        bool          `env:"KAFKA_ENABLE_LOGS"        envDefault:"false"` // librdkafka client logs
	SASL              SASLConfig
}

// ConsumerConfig configures the order mirror consumer.
type ConsumerConfig struct {
	Brokers         string `env:"KAFKA_BROKERS"           envDefault:"localhost:9092"`
	Topic           string `env:"KAFKA_TOPIC"             envDefault:"orders-filled"`
	DLQTopic        string `env:"KAFKA_DLQ_TOPIC"         envDefault:"orders-filled-dlq"`
	GroupID         string `env:"KAFKA_GROUP_ID"          envDefault:"orderfill-mirror"`
	AutoOffsetReset string `env:"KAFKA_AUTO_OFFSET_RESET" envDefault:"earliest"`
	EnableLogs      bool   `env:"KAFKA_ENABLE_LOGS"       envDefault:"false"`
	SASL            SASLConfig
}

// LoadProducerConfig reads the producer configuration from the environment.
func LoadProducerConfig() (ProducerConfig, error) {
	var cfg ProducerConfig
	if err := env.Parse(&cfg); err != nil {
		return ProducerConfig{}, fmt.Errorf("failed to parse kafka producer config: %w", err)
	}
	return cfg, nil
}

// LoadConsumerConfig reads the consumer configuration from the environment.
func LoadConsumerConfig() (ConsumerConfig, error) {
	var cfg ConsumerConfig
	if err := env.Parse(&cfg); err != nil {
		return ConsumerConfig{}, fmt.Errorf("failed to parse kafka consumer config: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields needed to connect and publish.
func (c ProducerConfig) Validate() error {
	if strings.TrimSpace(c.Brokers) == "" {
		return fmt.Errorf("kafka brokers are required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	return c.TopicConfig().Validate()
}

// ConfigMap returns the librdkafka settings of an idempotent producer.
func (c ProducerConfig) ConfigMap() *kafka.ConfigMap {
	cm := kafka.ConfigMap{
		"bootstrap.servers":      c.Brokers,
		"client.id":              c.ClientID,
		"acks":                   "all",
		"enable.idempotence":     true,
		"linger.ms":              5,
		"compression.type":       "lz4",
		"go.logs.channel.enable": c.EnableLogs,
	}
	c.SASL.apply(cm)
	return &cm
}

// AdminConfigMap returns the settings of an admin client on the same cluster.
func (c ProducerConfig) AdminConfigMap() *kafka.ConfigMap {
	cm := kafka.ConfigMap{"bootstrap.servers": c.Brokers}
	c.SASL.apply(cm)
	return &cm
}

// TopicConfig returns the topic layout to ensure on startup.
func (c ProducerConfig) TopicConfig() TopicConfig {
	return TopicConfig{
		Name:              c.Topic,
		NumPartitions:     c.Partitions,
		ReplicationFactor: c.ReplicationFactor,
	}
}

// Validate checks the fields needed to subscribe.
func (c ConsumerConfig) Validate() error {
	if strings.TrimSpace(c.Brokers) == "" {
		return fmt.Errorf("kafka brokers are required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("kafka group id is required")
	}
	switch c.AutoOffsetReset {
	case "earliest", "latest":
	default:
		return fmt.Errorf("auto offset reset must be earliest or latest, got %q", c.AutoOffsetReset)
	}
	return nil
}

// ConfigMap returns the consumer settings. Offsets are committed manually after each stored message.
func (c ConsumerConfig) ConfigMap() *kafka.ConfigMap {
	cm := kafka.ConfigMap{
		"bootstrap.servers":      c.Brokers,
		"group.id":               c.GroupID,
		"auto.offset.reset":      c.AutoOffsetReset,
		"enable.auto.commit":     false,
		"go.logs.channel.enable": c.EnableLogs,
	}
	c.SASL.apply(cm)
	return &cm
}

// DLQProducerConfig returns the producer settings used for the dead letter topic.
func (c ConsumerConfig) DLQProducerConfig() *kafka.ConfigMap {
	cm := kafka.ConfigMap{
		"bootstrap.servers":      c.Brokers,
		"acks":                   "all",
		"enable.idempotence":     true,
		"go.logs.channel.enable": c.EnableLogs,
	}
	c.SASL.apply(cm)
	return &cm
}
