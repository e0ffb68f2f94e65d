package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/orderfill-indexer/internal/chainclient/cosmos"
	sqliterepo "github.com/ava-labs/orderfill-indexer/pkg/data/sqlite/orderrepo"
	"github.com/ava-labs/orderfill-indexer/pkg/data/store"
	"github.com/ava-labs/orderfill-indexer/pkg/ingest"
	"github.com/ava-labs/orderfill-indexer/pkg/utils"
)

func runFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Usage:   "Minutes between ingestion runs",
			EnvVars: []string{"INTERVAL"},
			Value:   1,
		},
		&cli.StringFlag{
			Name:    "address",
			Aliases: []string{"a"},
			Usage:   "Sender address whose stored orders are logged at info level",
			EnvVars: []string{"ADDRESS"},
		},
		&cli.StringFlag{
			Name:    "api-url",
			Usage:   "Base URL of the chain LCD REST API",
			EnvVars: []string{"API_URL"},
			Value:   cosmos.DefaultAPIURL,
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Usage:   "Timeout of one tx search request",
			EnvVars: []string{"HTTP_TIMEOUT"},
			Value:   30 * time.Second,
		},
		&cli.BoolFlag{
			Name:    "save-raw-tx",
			Usage:   "Store every fetched tx response in the audit table",
			EnvVars: []string{"SAVE_RAW_TX"},
		},
		&cli.StringFlag{
			Name:    "on-insert-error",
			Usage:   "What a failed insert does to the run: continue or abort",
			EnvVars: []string{"ON_INSERT_ERROR"},
			Value:   string(ingest.PolicyContinue),
		},
		&cli.BoolFlag{
			Name:    "exit-on-error",
			Usage:   "Exit when a run fails instead of waiting for the next tick",
			EnvVars: []string{"EXIT_ON_ERROR"},
		},
		&cli.StringFlag{
			Name:    "api-addr",
			Usage:   "Listen address of the query API, e.g. :8080 (disabled when empty)",
			EnvVars: []string{"API_ADDR"},
		},
		&cli.BoolFlag{
			Name:    "publish",
			Usage:   "Publish stored orders to Kafka",
			EnvVars: []string{"KAFKA_PUBLISH"},
		},
	}
	flags = append(flags, commonFlags()...)
	flags = append(flags, kafkaFlags()...)
	return flags
}

func mirrorFlags() []cli.Flag {
	flags := commonFlags()
	flags = append(flags, kafkaFlags()...)
	return append(flags,
		&cli.StringFlag{
			Name:  "kafka-dlq-topic",
			Usage: "Topic failed messages are sent to (overrides KAFKA_DLQ_TOPIC)",
		},
		&cli.StringFlag{
			Name:  "kafka-group-id",
			Usage: "Consumer group ID (overrides KAFKA_GROUP_ID)",
		},
		&cli.StringFlag{
			Name:  "kafka-auto-offset-reset",
			Usage: "Where a new group starts: earliest or latest (overrides KAFKA_AUTO_OFFSET_RESET)",
		},
	)
}

// commonFlags configure logging, the order store and metrics.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "env-file",
			Usage:   "Optional .env file loaded before flags are resolved",
			EnvVars: []string{"ENV_FILE"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "DEBUG, INFO, WARNING, ERROR or CRITICAL",
			EnvVars: []string{"LOG_LEVEL"},
			Value:   "INFO",
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "json or text",
			EnvVars: []string{"LOG_FORMAT"},
			Value:   utils.LogFormatJSON,
		},
		&cli.StringFlag{
			Name:    "store",
			Usage:   "Order store backend: sqlite or clickhouse",
			EnvVars: []string{"STORE"},
			Value:   store.BackendSQLite,
		},
		&cli.StringFlag{
			Name:    "db",
			Usage:   "SQLite database file",
			EnvVars: []string{"DB_PATH"},
			Value:   sqliterepo.DefaultPath,
		},
		&cli.StringSliceFlag{
			Name:  "clickhouse-hosts",
			Usage: "ClickHouse hosts, comma-separated (overrides CLICKHOUSE_HOSTS)",
		},
		&cli.StringFlag{
			Name:  "clickhouse-database",
			Usage: "ClickHouse database (overrides CLICKHOUSE_DATABASE)",
		},
		&cli.StringFlag{
			Name:  "clickhouse-username",
			Usage: "ClickHouse username (overrides CLICKHOUSE_USERNAME)",
		},
		&cli.StringFlag{
			Name:  "clickhouse-password",
			Usage: "ClickHouse password (overrides CLICKHOUSE_PASSWORD)",
		},
		&cli.StringFlag{
			Name:  "clickhouse-orders-table",
			Usage: "ClickHouse orders table (overrides CLICKHOUSE_ORDERS_TABLE)",
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Usage:   "Port for Prometheus metrics server",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "chain-id",
			Usage:   "Chain ID label applied to all metrics",
			EnvVars: []string{"CHAIN_ID"},
			Value:   "osmosis-1",
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment label for metrics (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Cloud region label for metrics (e.g., 'us-east-1')",
			EnvVars: []string{"REGION"},
		},
		&cli.StringFlag{
			Name:    "cloud-provider",
			Usage:   "Cloud provider label for metrics (e.g., 'aws', 'gcp')",
			EnvVars: []string{"CLOUD_PROVIDER"},
		},
	}
}

// kafkaFlags override the KAFKA_* environment configuration.
func kafkaFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "kafka-brokers",
			Usage: "Kafka brokers, comma-separated (overrides KAFKA_BROKERS)",
		},
		&cli.StringFlag{
			Name:  "kafka-topic",
			Usage: "Orders topic (overrides KAFKA_TOPIC)",
		},
		&cli.BoolFlag{
			Name:  "kafka-enable-logs",
			Usage: "Forward librdkafka logs (overrides KAFKA_ENABLE_LOGS)",
		},
	}
}
