// Package orderrepo is the SQLite backend of the order store.
package orderrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/ava-labs/orderfill-indexer/internal/types"
	"github.com/ava-labs/orderfill-indexer/pkg/data"
)

const driverName = "sqlite3"

// DefaultPath is the database file used when none is configured.
const DefaultPath = "tx_data.db"

var _ data.OrderRepository = (*repository)(nil)

type repository struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (data.OrderRepository, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %q: %w", path, err)
	}
	repo, err := NewRepository(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewRepository wraps db and creates the tables if they do not exist.
// The pool is limited to one connection so inserts are serialised.
func NewRepository(ctx context.Context, db *sql.DB) (data.OrderRepository, error) {
	db.SetMaxOpenConns(1)
	repo := &repository{db: db}
	if err := repo.CreateTablesIfNotExist(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize order tables: %w", err)
	}
	return repo, nil
}

// CreateTablesIfNotExist creates tx_data, raw_tx_responses and their indexes.
func (r *repository) CreateTablesIfNotExist(ctx context.Context) error {
	for _, q := range schemaQueries {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (r *repository) InsertOrder(ctx context.Context, o *types.OrderFilled) error {
	ts := o.IngestionTimestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertOrderQuery,
		o.TxHash, o.Sender, o.AmountIn, o.AmountOut, o.SourceDomain, o.SolverRevenue,
		int64(o.Code), int64(o.Height), o.Filler, ts,
	)
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return fmt.Errorf("tx %s: %w", o.TxHash, data.ErrDuplicateOrder)
		}
		return fmt.Errorf("failed to insert order %s: %w", o.TxHash, err)
	}
	return nil
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (r *repository) MaxHeight(ctx context.Context) (uint64, error) {
	var height int64
	if err := r.db.QueryRowContext(ctx, maxHeightQuery).Scan(&height); err != nil {
		return 0, fmt.Errorf("failed to read max height: %w", err)
	}
	if height < 0 {
		return 0, fmt.Errorf("negative max height %d", height)
	}
	return uint64(height), nil
}

func (r *repository) InsertRawTxResponse(ctx context.Context, raw *types.RawTxResponse) error {
	_, err := r.db.ExecContext(ctx, insertRawQuery, raw.TxHash, int64(raw.Height), string(raw.TxResponse), raw.Valid)
	if err != nil {
		return fmt.Errorf("failed to insert raw tx response %s: %w", raw.TxHash, err)
	}
	return nil
}

func (r *repository) OrdersBySender(ctx context.Context, sender string) ([]types.OrderFilled, error) {
	return r.queryOrders(ctx, ordersBySenderQuery, sender)
}

func (r *repository) AllOrders(ctx context.Context) ([]types.OrderFilled, error) {
	return r.queryOrders(ctx, allOrdersQuery)
}

func (r *repository) queryOrders(ctx context.Context, query string, args ...any) ([]types.OrderFilled, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []types.OrderFilled
	for rows.Next() {
		var (
			o      types.OrderFilled
			code   int64
			height int64
			ts     sql.NullTime
		)
		if err := rows.Scan(&o.TxHash, &o.Sender, &o.AmountIn, &o.AmountOut, &o.SourceDomain,
			&o.SolverRevenue, &code, &height, &o.Filler, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Code = uint32(code)
		o.Height = uint64(height)
		if ts.Valid {
			o.IngestionTimestamp = ts.Time.UTC()
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

func (r *repository) TxHashes(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, txHashesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query tx hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan tx hash: %w", err)
		}
		hashes[h] = struct{}{}
	}
	return hashes, rows.Err()
}

func (r *repository) FilledOrderStats(ctx context.Context, filler string) (*data.OrderStats, error) {
	if filler == "" {
		return nil, data.ErrFillerRequired
	}
	rows, err := r.db.QueryContext(ctx, fillerStatsQuery, filler)
	if err != nil {
		return nil, fmt.Errorf("failed to query filler stats: %w", err)
	}
	defer rows.Close()

	stats := &data.OrderStats{Domains: []data.DomainStats{}}
	for rows.Next() {
		var d data.DomainStats
		if err := rows.Scan(&d.SourceDomain, &d.OrderCount, &d.TotalSolverRevenue); err != nil {
			return nil, fmt.Errorf("failed to scan filler stats: %w", err)
		}
		stats.Add(d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate filler stats: %w", err)
	}
	return stats, nil
}

func (r *repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *repository) Close() error {
	return r.db.Close()
}
