package clickhouse

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Client wraps the ClickHouse connection
type Client interface {
	// Conn returns the underlying ClickHouse connection
	Conn() driver.Conn
	Ping(ctx context.Context) error
	Close() error
}

const (
	maxExecutionTime = "max_execution_time"
	maxBlockSize     = "max_block_size"
)

const defaultPingTimeout = 10 * time.Second

type client struct {
	conn   driver.Conn
	logger *zap.SugaredLogger
}

// NewWithConn wraps an already opened connection.
func NewWithConn(conn driver.Conn, sugar *zap.SugaredLogger) Client {
	return &client{conn: conn, logger: sugar}
}

// New opens a connection with cfg and pings it. The order store cannot run
// without it, so a failed ping is returned as an error.
func New(cfg Config, sugar *zap.SugaredLogger) (Client, error) {
	conn, err := clickhouse.Open(connOptions(cfg, sugar))
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		logPingFailure(sugar, err)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse at %v: %w", cfg.Hosts, err)
	}

	return NewWithConn(conn, sugar), nil
}

func connOptions(cfg Config, sugar *zap.SugaredLogger) *clickhouse.Options {
	opts := &clickhouse.Options{
		Addr: cfg.Hosts,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialContext: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
		Settings: clickhouse.Settings{
			maxExecutionTime: cfg.MaxExecutionTime,
			maxBlockSize:     cfg.MaxBlockSize,
		},
		Compression:          &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		DialTimeout:          time.Duration(cfg.DialTimeout) * time.Second,
		MaxOpenConns:         cfg.MaxOpenConns,
		MaxIdleConns:         cfg.MaxIdleConns,
		ConnMaxLifetime:      time.Duration(cfg.ConnMaxLifetime) * time.Minute,
		ConnOpenStrategy:     clickhouse.ConnOpenInOrder,
		BlockBufferSize:      uint8(cfg.BlockBufferSize),
		MaxCompressionBuffer: cfg.MaxCompressionBuffer,
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: cfg.ClientName, Version: cfg.ClientVersion}},
		},
		TLS: &tls.Config{
			//nolint:gosec // configurable for local development
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}
	if cfg.Debug && sugar != nil {
		opts.Debugf = sugar.Debugf
	}
	return opts
}

func logPingFailure(sugar *zap.SugaredLogger, err error) {
	if sugar == nil {
		return
	}
	var exception *clickhouse.Exception
	if errors.As(err, &exception) {
		sugar.Errorw("failed to ping ClickHouse", "code", exception.Code, "message", exception.Message)
		return
	}
	sugar.Errorw("failed to ping ClickHouse", "error", err)
}

func (c *client) Conn() driver.Conn {
	return c.conn
}

func (c *client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *client) Close() error {
	return c.conn.Close()
}
