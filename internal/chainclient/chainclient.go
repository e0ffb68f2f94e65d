package chainclient

import (
	"context"

	"github.com/ava-labs/orderfill-indexer/internal/types"
)

// TxSearcher runs a transaction event search against a chain node.
type TxSearcher interface {
	SearchTxs(ctx context.Context, req types.TxSearchRequest) (*types.TxSearchResult, error)
}
