// Package data defines the order store used by the ingestion job, the batch
// loader and the query API. Backends live in sub-packages.
package data

import (
	"context"
	"errors"

	"github.com/ava-labs/orderfill-indexer/internal/types"
)

// ErrDuplicateOrder is returned by InsertOrder when the tx hash is already stored.
// Existing rows are never overwritten.
var ErrDuplicateOrder = errors.New("duplicate order")

// OrderRepository persists order records and raw transaction responses.
type OrderRepository interface {
	// InsertOrder stores o, or returns ErrDuplicateOrder if o.TxHash exists.
	InsertOrder(ctx context.Context, o *types.OrderFilled) error
	// MaxHeight returns the highest stored height, 0 when the store is empty.
	MaxHeight(ctx context.Context) (uint64, error)
	// InsertRawTxResponse appends an audit row. Raw rows are not deduplicated.
	InsertRawTxResponse(ctx context.Context, r *types.RawTxResponse) error
	OrdersBySender(ctx context.Context, sender string) ([]types.OrderFilled, error)
	AllOrders(ctx context.Context) ([]types.OrderFilled, error)
	// TxHashes returns the set of stored tx hashes.
	TxHashes(ctx context.Context) (map[string]struct{}, error)
	// FilledOrderStats aggregates count and revenue of filler's orders per source domain.
	FilledOrderStats(ctx context.Context, filler string) (*OrderStats, error)
	Ping(ctx context.Context) error
	Close() error
}

// DomainStats is the per source domain aggregate of filled orders.
type DomainStats struct {
	SourceDomain       string `json:"source_domain"`
	OrderCount         int64  `json:"order_count"`
	TotalSolverRevenue int64  `json:"total_solver_revenue"`
}

// OrderStats aggregates a filler's orders.
type OrderStats struct {
	TotalOrderCount    int64         `json:"total_order_count"`
	TotalSolverRevenue int64         `json:"total_solver_revenue"`
	Domains            []DomainStats `json:"domains"`
}

// Add appends d and updates the totals.
func (s *OrderStats) Add(d DomainStats) {
	s.Domains = append(s.Domains, d)
	s.TotalOrderCount += d.OrderCount
	s.TotalSolverRevenue += d.TotalSolverRevenue
}

// ErrFillerRequired is returned by FilledOrderStats for an empty filler.
var ErrFillerRequired = errors.New("filler address is required")
