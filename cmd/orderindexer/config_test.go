package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ava-labs/orderfill-indexer/internal/chainclient/cosmos"
	"github.com/ava-labs/orderfill-indexer/pkg/data/store"
	"github.com/ava-labs/orderfill-indexer/pkg/ingest"
)

// clearEnv unsets variables that would leak host configuration into the flags.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"INTERVAL", "ADDRESS", "API_URL", "CONTRACT_ADDRESS", "HTTP_TIMEOUT", "SAVE_RAW_TX",
		"ON_INSERT_ERROR", "EXIT_ON_ERROR", "API_ADDR", "KAFKA_PUBLISH", "ENV_FILE",
		"LOG_LEVEL", "LOG_FORMAT", "STORE", "DB_PATH", "METRICS_HOST", "METRICS_PORT",
		"CHAIN_ID", "ENVIRONMENT", "REGION", "CLOUD_PROVIDER",
		"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_DLQ_TOPIC", "KAFKA_GROUP_ID", "KAFKA_AUTO_OFFSET_RESET",
		"CLICKHOUSE_HOSTS", "CLICKHOUSE_DATABASE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func parseRun(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg *Config
		err error
	)
	app := &cli.App{
		Name: "orderindexer",
		Commands: []*cli.Command{{
			Name:  "run",
			Flags: runFlags(),
			Action: func(c *cli.Context) error {
				cfg, err = buildConfig(c)
				return nil
			},
		}},
	}
	require.NoError(t, app.Run(append([]string{"orderindexer", "run"}, args...)))
	return cfg, err
}

func parseMirror(t *testing.T, args ...string) (*MirrorConfig, error) {
	t.Helper()
	var (
		cfg *MirrorConfig
		err error
	)
	app := &cli.App{
		Name: "orderindexer",
		Commands: []*cli.Command{{
			Name:  "mirror",
			Flags: mirrorFlags(),
			Action: func(c *cli.Context) error {
				cfg, err = buildMirrorConfig(c)
				return nil
			},
		}},
	}
	require.NoError(t, app.Run(append([]string{"orderindexer", "mirror"}, args...)))
	return cfg, err
}

func TestBuildConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := parseRun(t)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, cosmos.DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, cosmos.ContractAddress, cfg.Contract)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, ingest.PolicyContinue, cfg.Policy)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, store.Config{Backend: store.BackendSQLite, SQLitePath: "tx_data.db"}, cfg.Store)
	assert.False(t, cfg.Publish)
	assert.False(t, cfg.SaveRaw)
	assert.False(t, cfg.ExitOnError)
	assert.Empty(t, cfg.APIAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr())
	assert.Equal(t, "osmosis-1", cfg.MetricsLabels.ChainID)
}

func TestBuildConfig_Flags(t *testing.T) {
	clearEnv(t)

	cfg, err := parseRun(t,
		"--interval", "5",
		"--address", " 0xabc ",
		"--save-raw-tx",
		"--on-insert-error", "abort",
		"--exit-on-error",
		"--db", "/tmp/orders.db",
		"--api-addr", ":8080",
		"--publish",
		"--kafka-brokers", "b1:9092, b2:9092",
		"--kafka-topic", "fills",
		"--metrics-host", "127.0.0.1",
		"--metrics-port", "9100",
	)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, "0xabc", cfg.Address)
	assert.True(t, cfg.SaveRaw)
	assert.Equal(t, ingest.PolicyAbort, cfg.Policy)
	assert.True(t, cfg.ExitOnError)
	assert.Equal(t, "/tmp/orders.db", cfg.Store.SQLitePath)
	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.True(t, cfg.Publish)
	assert.Equal(t, "b1:9092,b2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "fills", cfg.Kafka.Topic)
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr())
}

func TestBuildConfig_EnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("INTERVAL", "3")
	t.Setenv("ON_INSERT_ERROR", "abort")
	t.Setenv("KAFKA_TOPIC", "from-env")

	cfg, err := parseRun(t)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, cfg.Interval)
	assert.Equal(t, ingest.PolicyAbort, cfg.Policy)
	assert.Equal(t, "from-env", cfg.Kafka.Topic)
}

func TestBuildConfig_ContractIsFixed(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTRACT_ADDRESS", "osmo1other")

	cfg, err := parseRun(t)
	require.NoError(t, err)
	assert.Equal(t, cosmos.ContractAddress, cfg.Contract, "the contract is not configurable")

	app := &cli.App{
		Name:     "orderindexer",
		Commands: []*cli.Command{{Name: "run", Flags: runFlags(), Action: func(*cli.Context) error { return nil }}},
	}
	app.Writer, app.ErrWriter = io.Discard, io.Discard
	err = app.Run([]string{"orderindexer", "run", "--contract", "osmo1other"})
	require.ErrorContains(t, err, "flag provided but not defined")
}

func TestBuildConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "zero interval", args: []string{"--interval", "0"}},
		{name: "unknown policy", args: []string{"--on-insert-error", "retry"}},
		{name: "unknown store", args: []string{"--store", "postgres"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := parseRun(t, tt.args...)
			require.Error(t, err)
		})
	}
}

func TestBuildConfig_ClickHouse(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLICKHOUSE_DATABASE", "orders")

	cfg, err := parseRun(t, "--store", "clickhouse", "--clickhouse-hosts", "ch1:9000,ch2:9000")
	require.NoError(t, err)
	assert.Equal(t, store.BackendClickHouse, cfg.Store.Backend)
	assert.Equal(t, []string{"ch1:9000", "ch2:9000"}, cfg.Store.ClickHouse.Hosts)
	assert.Equal(t, "orders", cfg.Store.ClickHouse.Database)
	assert.Equal(t, "tx_data", cfg.Store.ClickHouse.OrdersTable)
}

func TestBuildMirrorConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("KAFKA_GROUP_ID", "env-group")

	cfg, err := parseMirror(t, "--kafka-dlq-topic", "dead", "--kafka-auto-offset-reset", "latest")
	require.NoError(t, err)
	assert.Equal(t, "localhost:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "orders-filled", cfg.Kafka.Topic)
	assert.Equal(t, "dead", cfg.Kafka.DLQTopic)
	assert.Equal(t, "env-group", cfg.Kafka.GroupID)
	assert.Equal(t, "latest", cfg.Kafka.AutoOffsetReset)

	_, err = parseMirror(t, "--kafka-auto-offset-reset", "middle")
	require.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ORDERFILL_TEST_KEEP", "process")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ORDERFILL_TEST_VAR=from-file\nORDERFILL_TEST_KEEP=file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ORDERFILL_TEST_VAR") })

	require.NoError(t, loadEnvFile([]string{"run", "--env-file", path}, os.LookupEnv))
	assert.Equal(t, "from-file", os.Getenv("ORDERFILL_TEST_VAR"))
	assert.Equal(t, "process", os.Getenv("ORDERFILL_TEST_KEEP"))

	require.NoError(t, loadEnvFile([]string{"run"}, os.LookupEnv), "no file is not an error")
	require.Error(t, loadEnvFile([]string{"run", "--env-file=" + filepath.Join(t.TempDir(), "missing")}, os.LookupEnv))
}
