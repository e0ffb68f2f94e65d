package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/ava-labs/orderfill-indexer/internal/chainclient/cosmos"
	"github.com/ava-labs/orderfill-indexer/pkg/clickhouse"
	"github.com/ava-labs/orderfill-indexer/pkg/data/store"
	"github.com/ava-labs/orderfill-indexer/pkg/ingest"
	"github.com/ava-labs/orderfill-indexer/pkg/kafka"
	"github.com/ava-labs/orderfill-indexer/pkg/metrics"
	"github.com/ava-labs/orderfill-indexer/pkg/utils"
)

// Config holds all configuration for the run command
type Config struct {
	LogLevel  string
	LogFormat string

	// Ingestion
	Interval    time.Duration
	Address     string
	APIURL      string
	Contract    string
	HTTPTimeout time.Duration
	SaveRaw     bool
	Policy      ingest.Policy
	ExitOnError bool

	Store store.Config

	// Query API, disabled when empty
	APIAddr string

	// Kafka publishing
	Publish bool
	Kafka   kafka.ProducerConfig

	// Metrics
	MetricsHost   string
	MetricsPort   int
	MetricsLabels metrics.Labels
}

// MirrorConfig holds all configuration for the mirror command
type MirrorConfig struct {
	LogLevel  string
	LogFormat string

	Store store.Config
	Kafka kafka.ConsumerConfig

	MetricsHost   string
	MetricsPort   int
	MetricsLabels metrics.Labels
}

func metricsAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return metricsAddr(c.MetricsHost, c.MetricsPort)
}

// MetricsAddr returns the formatted metrics address
func (c *MirrorConfig) MetricsAddr() string {
	return metricsAddr(c.MetricsHost, c.MetricsPort)
}

// buildConfig builds a Config from CLI context flags
func buildConfig(c *cli.Context) (*Config, error) {
	interval := c.Int("interval")
	if interval < 1 {
		return nil, fmt.Errorf("interval must be at least 1 minute, got %d", interval)
	}
	policy, err := ingest.ParsePolicy(c.String("on-insert-error"))
	if err != nil {
		return nil, err
	}
	storeCfg, err := buildStoreConfig(c)
	if err != nil {
		return nil, err
	}
	kafkaCfg, err := kafka.LoadProducerConfig()
	if err != nil {
		return nil, err
	}
	applyKafkaFlags(c, &kafkaCfg.Brokers, &kafkaCfg.Topic, &kafkaCfg.EnableLogs)

	cfg := &Config{
		LogLevel:      c.String("log-level"),
		LogFormat:     c.String("log-format"),
		Interval:      time.Duration(interval) * time.Minute,
		Address:       strings.TrimSpace(c.String("address")),
		APIURL:        c.String("api-url"),
		Contract:      cosmos.ContractAddress,
		HTTPTimeout:   c.Duration("http-timeout"),
		SaveRaw:       c.Bool("save-raw-tx"),
		Policy:        policy,
		ExitOnError:   c.Bool("exit-on-error"),
		Store:         storeCfg,
		APIAddr:       c.String("api-addr"),
		Publish:       c.Bool("publish"),
		Kafka:         kafkaCfg,
		MetricsHost:   c.String("metrics-host"),
		MetricsPort:   c.Int("metrics-port"),
		MetricsLabels: buildMetricsLabels(c),
	}
	if cfg.Publish {
		if err := cfg.Kafka.Validate(); err != nil {
			return nil, fmt.Errorf("invalid kafka config: %w", err)
		}
	}
	return cfg, nil
}

// buildMirrorConfig builds a MirrorConfig from CLI context flags
func buildMirrorConfig(c *cli.Context) (*MirrorConfig, error) {
	storeCfg, err := buildStoreConfig(c)
	if err != nil {
		return nil, err
	}
	kafkaCfg, err := kafka.LoadConsumerConfig()
	if err != nil {
		return nil, err
	}
	applyKafkaFlags(c, &kafkaCfg.Brokers, &kafkaCfg.Topic, &kafkaCfg.EnableLogs)
	if c.IsSet("kafka-dlq-topic") {
		kafkaCfg.DLQTopic = c.String("kafka-dlq-topic")
	}
	if c.IsSet("kafka-group-id") {
		kafkaCfg.GroupID = c.String("kafka-group-id")
	}
	if c.IsSet("kafka-auto-offset-reset") {
		kafkaCfg.AutoOffsetReset = c.String("kafka-auto-offset-reset")
	}
	if err := kafkaCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}

	return &MirrorConfig{
		LogLevel:      c.String("log-level"),
		LogFormat:     c.String("log-format"),
		Store:         storeCfg,
		Kafka:         kafkaCfg,
		MetricsHost:   c.String("metrics-host"),
		MetricsPort:   c.Int("metrics-port"),
		MetricsLabels: buildMetricsLabels(c),
	}, nil
}

// buildStoreConfig reads the ClickHouse settings from the environment and applies flag overrides.
func buildStoreConfig(c *cli.Context) (store.Config, error) {
	cfg := store.Config{
		Backend:    c.String("store"),
		SQLitePath: c.String("db"),
	}
	if cfg.Backend != store.BackendClickHouse {
		return cfg, cfg.Validate()
	}

	chCfg, err := clickhouse.Load()
	if err != nil {
		return store.Config{}, err
	}
	if c.IsSet("clickhouse-hosts") {
		chCfg.Hosts = utils.SplitCSV(c.StringSlice("clickhouse-hosts")...)
	}
	if c.IsSet("clickhouse-database") {
		chCfg.Database = c.String("clickhouse-database")
	}
	if c.IsSet("clickhouse-username") {
		chCfg.Username = c.String("clickhouse-username")
	}
	if c.IsSet("clickhouse-password") {
		chCfg.Password = c.String("clickhouse-password")
	}
	if c.IsSet("clickhouse-orders-table") {
		chCfg.OrdersTable = c.String("clickhouse-orders-table")
	}
	cfg.ClickHouse = chCfg
	return cfg, cfg.Validate()
}

func applyKafkaFlags(c *cli.Context, brokers, topic *string, enableLogs *bool) {
	if c.IsSet("kafka-brokers") {
		*brokers = strings.Join(utils.SplitCSV(c.String("kafka-brokers")), ",")
	}
	if c.IsSet("kafka-topic") {
		*topic = c.String("kafka-topic")
	}
	if c.IsSet("kafka-enable-logs") {
		*enableLogs = c.Bool("kafka-enable-logs")
	}
}

func buildMetricsLabels(c *cli.Context) metrics.Labels {
	return metrics.Labels{
		ChainID:       c.String("chain-id"),
		Environment:   c.String("environment"),
		Region:        c.String("region"),
		CloudProvider: c.String("cloud-provider"),
	}
}

// loadEnvFile loads the --env-file (or ENV_FILE) named in args before the flags
// read their environment variables. Variables already set win over the file.
func loadEnvFile(args []string, lookupEnv func(string) (string, bool)) error {
	path, _ := lookupEnv("ENV_FILE")
	for i, a := range args {
		switch {
		case a == "--env-file" || a == "-env-file":
			if i+1 < len(args) {
				path = args[i+1]
			}
		case strings.HasPrefix(a, "--env-file="):
			path = strings.TrimPrefix(a, "--env-file=")
		case strings.HasPrefix(a, "-env-file="):
			path = strings.TrimPrefix(a, "-env-file=")
		}
	}
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
