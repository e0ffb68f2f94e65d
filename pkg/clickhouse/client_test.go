package clickhouse

import (
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ava-labs/orderfill-indexer/pkg/clickhouse/testutils"
	"github.com/ava-labs/orderfill-indexer/pkg/utils"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	logger, err := utils.NewSugaredLogger(true)
	require.NoError(t, err)
	return logger
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"CLICKHOUSE_HOSTS", "CLICKHOUSE_DATABASE", "CLICKHOUSE_USERNAME", "CLICKHOUSE_PASSWORD",
		"CLICKHOUSE_DEBUG", "CLICKHOUSE_INSECURE_SKIP_VERIFY", "CLICKHOUSE_ORDERS_TABLE", "CLICKHOUSE_RAW_TABLE",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9000"}, cfg.Hosts)
	assert.Equal(t, "default", cfg.Database)
	assert.Equal(t, "default", cfg.Username)
	assert.Empty(t, cfg.Password)
	assert.False(t, cfg.Debug)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, 60, cfg.MaxExecutionTime)
	assert.Equal(t, 30, cfg.DialTimeout)
	assert.Equal(t, 1000, cfg.MaxBlockSize)
	assert.Equal(t, "orderfill-indexer", cfg.ClientName)
	assert.Equal(t, "tx_data", cfg.OrdersTable)
	assert.Equal(t, "raw_tx_responses", cfg.RawTable)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOSTS", "ch-1:9000,ch-2:9000")
	t.Setenv("CLICKHOUSE_DATABASE", "orders")
	t.Setenv("CLICKHOUSE_DEBUG", "true")
	t.Setenv("CLICKHOUSE_ORDERS_TABLE", "fills")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"ch-1:9000", "ch-2:9000"}, cfg.Hosts)
	assert.Equal(t, "orders", cfg.Database)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "fills", cfg.OrdersTable)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("CLICKHOUSE_MAX_OPEN_CONNS", "not-a-number")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse clickhouse config")
}

func TestNew_InvalidPort(t *testing.T) {
	cfg := Config{
		Hosts:       []string{"invalid:99999"},
		Database:    "test",
		Username:    "test",
		Password:    "test",
		Debug:       true,
		DialTimeout: 1,
	}

	client, err := New(cfg, testLogger(t))

	var addrErr *net.AddrError
	require.ErrorAs(t, err, &addrErr)
	require.Equal(t, "invalid port", addrErr.Err)
	assert.Nil(t, client)
}

func TestNew_PingFailure(t *testing.T) {
	cfg := Config{
		Hosts:       []string{"127.0.0.1:1"},
		Database:    "test",
		Username:    "test",
		Password:    "test",
		DialTimeout: 1,
	}

	client, err := New(cfg, testLogger(t))

	var netErr *net.OpError
	require.ErrorAs(t, err, &netErr)
	require.Equal(t, "connect: connection refused", netErr.Err.Error())
	assert.Nil(t, client)
}

func TestNewWithConn(t *testing.T) {
	mockConn := &testutils.MockConn{}
	mockConn.On("Ping", t.Context()).Return(nil)
	mockConn.On("Close").Return(nil)

	c := NewWithConn(mockConn, testLogger(t))
	assert.Equal(t, mockConn, c.Conn())
	require.NoError(t, c.Ping(t.Context()))
	require.NoError(t, c.Close())
	mockConn.AssertExpectations(t)
}

func TestClient_PingException(t *testing.T) {
	exception := &clickhouse.Exception{
		Code:    516,
		Message: "Authentication failed",
	}

	mockConn := &testutils.MockConn{}
	mockConn.On("Ping", t.Context()).Return(exception)

	c := NewWithConn(mockConn, nil)
	err := c.Ping(t.Context())

	var ex *clickhouse.Exception
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, int32(516), ex.Code)
	mockConn.AssertExpectations(t)
}

func TestConnOptions(t *testing.T) {
	cfg := Config{
		Hosts:            []string{"ch1:9000", "ch2:9000"},
		Database:         "orders",
		Username:         "indexer",
		DialTimeout:      3,
		ConnMaxLifetime:  2,
		MaxExecutionTime: 60,
		MaxBlockSize:     1000,
		BlockBufferSize:  10,
		ClientName:       "orderfill-indexer",
		ClientVersion:    "1.0",
	}

	opts := connOptions(cfg, nil)
	assert.Equal(t, cfg.Hosts, opts.Addr)
	assert.Equal(t, "orders", opts.Auth.Database)
	assert.Equal(t, 3*time.Second, opts.DialTimeout)
	assert.Equal(t, 2*time.Minute, opts.ConnMaxLifetime)
	assert.Equal(t, 60, opts.Settings[maxExecutionTime])
	assert.Equal(t, "orderfill-indexer", opts.ClientInfo.Products[0].Name)
	assert.Nil(t, opts.Debugf, "debug logging needs both Debug and a logger")

	cfg.Debug = true
	assert.NotNil(t, connOptions(cfg, testLogger(t)).Debugf)
}
