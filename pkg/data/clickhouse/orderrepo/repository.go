// Package orderrepo is the ClickHouse backend of the order store.
package orderrepo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ava-labs/orderfill-indexer/internal/types"
	"github.com/ava-labs/orderfill-indexer/pkg/clickhouse"
	"github.com/ava-labs/orderfill-indexer/pkg/data"
)

var _ data.OrderRepository = (*repository)(nil)

type repository struct {
	client      clickhouse.Client
	ordersTable string
	rawTable    string

	// ClickHouse has no unique constraint; the existence check and the
	// insert run under mu so a single process never writes a hash twice.
	mu sync.Mutex
}

// NewRepository creates the order and raw tables in database if needed.
func NewRepository(
	ctx context.Context,
	client clickhouse.Client,
	database, ordersTable, rawTable string,
) (data.OrderRepository, error) {
	repo := &repository{
		client:      client,
		ordersTable: database + "." + ordersTable,
		rawTable:    database + "." + rawTable,
	}
	if err := repo.CreateTablesIfNotExist(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// CreateTablesIfNotExist creates the order and raw tables.
func (r *repository) CreateTablesIfNotExist(ctx context.Context) error {
	if err := r.client.Conn().Exec(ctx, CreateOrdersTableQuery(r.ordersTable)); err != nil {
		return fmt.Errorf("failed to create orders table: %w", err)
	}
	if err := r.client.Conn().Exec(ctx, CreateRawTableQuery(r.rawTable)); err != nil {
		return fmt.Errorf("failed to create raw tx responses table: %w", err)
	}
	return nil
}

func (r *repository) InsertOrder(ctx context.Context, o *types.OrderFilled) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count uint64
	if err := r.client.Conn().QueryRow(ctx, countByHashQuery(r.ordersTable), o.TxHash).Scan(&count); err != nil {
		return fmt.Errorf("failed to check order %s: %w", o.TxHash, err)
	}
	if count > 0 {
		return fmt.Errorf("tx %s: %w", o.TxHash, data.ErrDuplicateOrder)
	}

	ts := o.IngestionTimestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	err := r.client.Conn().Exec(ctx, insertOrderQuery(r.ordersTable),
		o.TxHash, o.Sender, o.AmountIn, o.AmountOut, o.SourceDomain, o.SolverRevenue,
		o.Code, o.Height, o.Filler, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order %s: %w", o.TxHash, err)
	}
	return nil
}

func (r *repository) MaxHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if err := r.client.Conn().QueryRow(ctx, maxHeightQuery(r.ordersTable)).Scan(&height); err != nil {
		return 0, fmt.Errorf("failed to read max height: %w", err)
	}
	return height, nil
}

func (r *repository) InsertRawTxResponse(ctx context.Context, raw *types.RawTxResponse) error {
	err := r.client.Conn().Exec(ctx, insertRawQuery(r.rawTable),
		raw.TxHash, raw.Height, string(raw.TxResponse), raw.Valid,
	)
	if err != nil {
		return fmt.Errorf("failed to insert raw tx response %s: %w", raw.TxHash, err)
	}
	return nil
}

func (r *repository) OrdersBySender(ctx context.Context, sender string) ([]types.OrderFilled, error) {
	return r.queryOrders(ctx, ordersBySenderQuery(r.ordersTable), sender)
}

func (r *repository) AllOrders(ctx context.Context) ([]types.OrderFilled, error) {
	return r.queryOrders(ctx, allOrdersQuery(r.ordersTable))
}

func (r *repository) queryOrders(ctx context.Context, query string, args ...any) ([]types.OrderFilled, error) {
	rows, err := r.client.Conn().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []types.OrderFilled
	for rows.Next() {
		var o types.OrderFilled
		if err := rows.Scan(&o.TxHash, &o.Sender, &o.AmountIn, &o.AmountOut, &o.SourceDomain,
			&o.SolverRevenue, &o.Code, &o.Height, &o.Filler, &o.IngestionTimestamp); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.IngestionTimestamp = o.IngestionTimestamp.UTC()
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

func (r *repository) TxHashes(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.client.Conn().Query(ctx, txHashesQuery(r.ordersTable))
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
	rows, err := r.client.Conn().Query(ctx, fillerStatsQuery(r.ordersTable), filler)
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
	return r.client.Ping(ctx)
}

func (r *repository) Close() error {
	return r.client.Close()
}
