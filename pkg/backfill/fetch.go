// Package backfill holds the offline tools: paged history download to JSON
// files and bulk loading of those files into an order store.
package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/orderfill-indexer/internal/chainclient"
	"github.com/ava-labs/orderfill-indexer/internal/chainclient/cosmos"
	"github.com/ava-labs/orderfill-indexer/internal/types"
)

const (
	DefaultMaxAttempts = 20
	DefaultLimit       = 100
	DefaultPause       = time.Second
)

// Options bounds a paged download.
type Options struct {
	MaxAttempts int           // page ceiling
	Limit       int           // page size
	Pause       time.Duration // delay between pages, zero disables it
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Pause < 0 {
		o.Pause = 0
	}
	return o
}

// FetchReport summarises a paged download.
type FetchReport struct {
	Pages     int
	Collected int
	Total     uint64
	Files     []string
}

// pageFile is the on-disk layout of one downloaded page.
type pageFile struct {
	Txs         []json.RawMessage `json:"txs"`
	TxResponses []json.RawMessage `json:"tx_responses"`
}

// FetchPages downloads the order_filled history of contract page by page into
// dir as orders_<unix>_<page>.json, the page padded to four digits so the
// files sort in page order. It stops at the page ceiling, once the
// reported total has been collected, or on an empty page.
func FetchPages(
	ctx context.Context,
	searcher chainclient.TxSearcher,
	contract string,
	dir string,
	opts Options,
	log *zap.SugaredLogger,
) (*FetchReport, error) {
	opts = opts.withDefaults()
	if contract == "" {
		contract = cosmos.ContractAddress
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}

	stamp := time.Now().Unix()
	report := &FetchReport{}

	for page := 1; page <= opts.MaxAttempts; page++ {
		res, err := searcher.SearchTxs(ctx, types.TxSearchRequest{
			Query: cosmos.OrderFilledQuery(contract),
			Page:  page,
			Limit: opts.Limit,
		})
		if err != nil {
			return report, fmt.Errorf("page %d: %w", page, err)
		}
		if len(res.TxResponses) == 0 {
			log.Infow("empty page, stopping", "page", page)
			break
		}

		path := filepath.Join(dir, fmt.Sprintf("orders_%d_%04d.json", stamp, page))
		if err := writePage(path, res); err != nil {
			return report, err
		}

		report.Pages++
		report.Collected += len(res.TxResponses)
		report.Total = uint64(res.Total)
		report.Files = append(report.Files, path)
		log.Infow("page saved",
			"page", page,
			"file", path,
			"count", len(res.TxResponses),
			"collected", report.Collected,
			"total", report.Total,
		)

		if report.Total > 0 && uint64(report.Collected) >= report.Total {
			log.Infow("collected all transactions", "total", report.Total)
			break
		}
		if page < opts.MaxAttempts && opts.Pause > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(opts.Pause):
			}
		}
	}
	return report, nil
}

func writePage(path string, res *types.TxSearchResult) error {
	pf := pageFile{
		Txs:         res.Txs,
		TxResponses: make([]json.RawMessage, 0, len(res.TxResponses)),
	}
	if pf.Txs == nil {
		pf.Txs = []json.RawMessage{}
	}
	for _, tx := range res.TxResponses {
		pf.TxResponses = append(pf.TxResponses, tx.Raw)
	}

	b, err := json.Marshal(pf)
	if err != nil {
		return fmt.Errorf("failed to encode page %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write page %s: %w", path, err)
	}
	return nil
}
