package backfill

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ava-labs/orderfill-indexer/internal/chainclient/cosmos"
	"github.com/ava-labs/orderfill-indexer/internal/types"
	"github.com/ava-labs/orderfill-indexer/pkg/data"
)

// Store is the part of data.OrderRepository the loader writes to.
type Store interface {
	MaxHeight(ctx context.Context) (uint64, error)
	TxHashes(ctx context.Context) (map[string]struct{}, error)
	InsertOrder(ctx context.Context, o *types.OrderFilled) error
	InsertRawTxResponse(ctx context.Context, r *types.RawTxResponse) error
}

// LoadOptions selects which records are written.
type LoadOptions struct {
	Contract           string // empty accepts every contract
	OnlyAboveWatermark bool   // skip records at or below the stored max height
	OnlyMissing        bool   // skip records whose tx hash is already stored
	SaveRaw            bool   // append every response to the audit table
}

// LoadReport counts what Load did.
type LoadReport struct {
	Orders                 int
	Inserted               int
	Duplicates             int
	DuplicateHashesInFiles int
	Skipped                int
	Failed                 int
	Malformed              int
	RawInserted            int
}

// Load maps responses to order records and inserts them. Malformed
// transactions and failed inserts are counted and logged, and loading goes on;
// failed inserts are returned joined.
func Load(
	ctx context.Context,
	store Store,
	responses []types.TxResponse,
	opts LoadOptions,
	log *zap.SugaredLogger,
) (*LoadReport, error) {
	report := &LoadReport{}
	mapper := cosmos.NewMapper(opts.Contract)

	var orders []types.OrderFilled
	for _, tx := range responses {
		o, err := mapper.MapTxResponse(tx)
		if err != nil {
			report.Malformed++
			log.Warnw("skipping malformed transaction", "tx_hash", tx.TxHash, "error", err)
			continue
		}
		orders = append(orders, o...)
	}
	report.Orders = len(orders)
	report.DuplicateHashesInFiles = DuplicateHashes(orders)

	if len(orders) == 0 {
		log.Info("no orders in input")
	} else {
		lo, hi := types.MinMaxHeight(orders)
		log.Infow("loaded orders", "count", len(orders), "min_height", lo, "max_height", hi,
			"duplicate_hashes", report.DuplicateHashesInFiles)
	}

	var watermark uint64
	if opts.OnlyAboveWatermark {
		wm, err := store.MaxHeight(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to read watermark: %w", err)
		}
		watermark = wm
	}

	var known map[string]struct{}
	if opts.OnlyMissing {
		h, err := store.TxHashes(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to read stored tx hashes: %w", err)
		}
		known = h
	}

	var errs []error
	for i := range orders {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		o := &orders[i]
		if opts.OnlyAboveWatermark && o.Height <= watermark {
			report.Skipped++
			log.Debugw("skipping order at or below watermark", "tx_hash", o.TxHash, "height", o.Height)
			continue
		}
		if opts.OnlyMissing {
			if _, ok := known[o.TxHash]; ok {
				report.Skipped++
				continue
			}
		}

		err := store.InsertOrder(ctx, o)
		switch {
		case errors.Is(err, data.ErrDuplicateOrder):
			report.Duplicates++
			log.Debugw("order already stored", "tx_hash", o.TxHash)
		case err != nil:
			report.Failed++
			errs = append(errs, err)
			log.Errorw("failed to insert order", "tx_hash", o.TxHash, "height", o.Height, "error", err)
		default:
			report.Inserted++
			if known != nil {
				known[o.TxHash] = struct{}{}
			}
		}
	}

	if opts.SaveRaw {
		for _, tx := range responses {
			raw := cosmos.RawFromTxResponse(tx)
			if err := store.InsertRawTxResponse(ctx, &raw); err != nil {
				errs = append(errs, err)
				log.Errorw("failed to insert raw tx response", "tx_hash", tx.TxHash, "error", err)
				continue
			}
			report.RawInserted++
		}
	}

	log.Infow("load finished",
		"orders", report.Orders,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"malformed", report.Malformed,
		"raw_inserted", report.RawInserted,
	)
	return report, errors.Join(errs...)
}

// DuplicateHashes returns how many tx hashes appear more than once in orders.
func DuplicateHashes(orders []types.OrderFilled) int {
	seen := make(map[string]int, len(orders))
	for _, o := range orders {
		seen[o.TxHash]++
	}
	dups := 0
	for _, n := range seen {
		if n > 1 {
			dups++
		}
	}
	return dups
}
