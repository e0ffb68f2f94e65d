// Package ingest runs one polling cycle: read the watermark, fetch the fills
// above it, map them to order records and store each record independently.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/orderfill-indexer/internal/chainclient"
	"github.com/ava-labs/orderfill-indexer/internal/chainclient/cosmos"
	"github.com/ava-labs/orderfill-indexer/internal/types"
	"github.com/ava-labs/orderfill-indexer/pkg/data"
	"github.com/ava-labs/orderfill-indexer/pkg/metrics"
)

// Policy decides what a cycle does after a record fails to persist.
type Policy string

const (
	// PolicyContinue logs the failure, keeps going and reports all failures at the end.
	PolicyContinue Policy = "continue"
	// PolicyAbort stops the cycle at the first failure.
	PolicyAbort Policy = "abort"
)

// ParsePolicy accepts "continue" or "abort", case-insensitively. Empty means continue.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyContinue:
		return PolicyContinue, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown insert error policy %q (want continue or abort)", s)
	}
}

// Store is the part of the order store a cycle writes to.
type Store interface {
	MaxHeight(ctx context.Context) (uint64, error)
	InsertOrder(ctx context.Context, o *types.OrderFilled) error
	InsertRawTxResponse(ctx context.Context, r *types.RawTxResponse) error
}

// Publisher forwards newly stored orders downstream.
type Publisher interface {
	PublishOrder(ctx context.Context, o *types.OrderFilled) error
}

// Config configures a Job.
type Config struct {
	// Contract is the CosmWasm contract whose order_filled events are indexed.
	Contract string
	// Address, when set, logs every stored order sent by it at info level.
	Address string
	// SaveRaw stores an audit row for every fetched transaction.
	SaveRaw bool
	Policy  Policy
}

// Result summarizes one cycle.
type Result struct {
	Watermark  uint64
	Fetched    int
	Inserted   int
	Duplicates int
	Failed     int
	Malformed  int
	MinHeight  uint64
	MaxHeight  uint64
}

// Job is the ingestion cycle. It holds no state between runs other than what the store holds.
type Job struct {
	store     Store
	searcher  chainclient.TxSearcher
	mapper    *cosmos.Mapper
	publisher Publisher
	metrics   *metrics.Metrics
	log       *zap.SugaredLogger
	cfg       Config
}

// Option configures optional Job dependencies.
type Option func(*Job)

// WithPublisher publishes every inserted order.
func WithPublisher(p Publisher) Option {
	return func(j *Job) { j.publisher = p }
}

// WithMetrics records cycle metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Job) { j.metrics = m }
}

// WithClock overrides the ingestion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.mapper.Now = now }
}

// New creates a Job. Contract defaults to cosmos.ContractAddress and Policy to continue.
func New(store Store, searcher chainclient.TxSearcher, log *zap.SugaredLogger, cfg Config, opts ...Option) (*Job, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if searcher == nil {
		return nil, errors.New("tx searcher is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Contract == "" {
		cfg.Contract = cosmos.ContractAddress
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyContinue
	}
	if _, err := ParsePolicy(string(cfg.Policy)); err != nil {
		return nil, err
	}

	j := &Job{
		store:    store,
		searcher: searcher,
		mapper:   cosmos.NewMapper(cfg.Contract),
		log:      log,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Run executes one cycle and discards the result summary.
func (j *Job) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

// RunOnce executes one cycle. A failure to read the watermark or fetch aborts
// the cycle before anything is written. A malformed transaction follows the
// policy: PolicyAbort fails the cycle before any write, PolicyContinue skips it.
// Record failures follow the same policy; with PolicyContinue they are joined
// into the returned error.
func (j *Job) RunOnce(ctx context.Context) (res Result, err error) {
	start := time.Now()
	defer func() {
		j.metrics.RecordJobRun(err, time.Since(start).Seconds())
	}()

	watermark, err := j.store.MaxHeight(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read watermark: %w", err)
	}
	res.Watermark = watermark
	j.metrics.SetWatermark(watermark)

	txs, err := cosmos.FetchNewTxs(ctx, j.searcher, j.cfg.Contract, watermark)
	if err != nil {
		return res, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	mapped, orders, err := j.mapTxs(txs, &res)
	if err != nil {
		return res, fmt.Errorf("failed to map transactions: %w", err)
	}

	var failures []error
	if j.cfg.SaveRaw {
		for _, tx := range mapped {
			raw := cosmos.RawFromTxResponse(tx)
			if err := j.store.InsertRawTxResponse(ctx, &raw); err != nil {
				j.log.Errorw("raw_tx_insert_failed", "tx_hash", tx.TxHash, "error", err)
				if j.cfg.Policy == PolicyAbort {
					return res, err
				}
				failures = append(failures, err)
				continue
			}
			j.metrics.IncRawResponses()
		}
	}

	res.Fetched = len(orders)
	j.metrics.AddOrdersFetched(len(orders))

	if len(orders) == 0 {
		j.log.Infow("no_transactions_collected", "watermark", watermark, "malformed", res.Malformed)
		return res, errors.Join(failures...)
	}

	res.MinHeight, res.MaxHeight = types.MinMaxHeight(orders)
	j.log.Infow("transactions_collected",
		"count", len(orders),
		"min_height", res.MinHeight,
		"max_height", res.MaxHeight,
	)

	for i := range orders {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := j.persist(ctx, &orders[i], &res); err != nil {
			if j.cfg.Policy == PolicyAbort {
				j.logSummary(res)
				return res, err
			}
			failures = append(failures, err)
		}
	}

	j.logSummary(res)
	return res, errors.Join(failures...)
}

// mapTxs maps every transaction before anything is written. It returns the
// transactions that mapped cleanly together with their records.
func (j *Job) mapTxs(txs []types.TxResponse, res *Result) ([]types.TxResponse, []types.OrderFilled, error) {
	mapped := make([]types.TxResponse, 0, len(txs))
	var orders []types.OrderFilled
	for _, tx := range txs {
		o, err := j.mapper.MapTxResponse(tx)
		if err != nil {
			if j.cfg.Policy == PolicyAbort {
				return nil, nil, err
			}
			res.Malformed++
			j.metrics.IncMalformed()
			j.log.Errorw("malformed_transaction_skipped", "tx_hash", tx.TxHash, "height", uint64(tx.Height), "error", err)
			continue
		}
		mapped = append(mapped, tx)
		orders = append(orders, o...)
	}
	return mapped, orders, nil
}

// persist stores one record. Duplicates are counted and never treated as failures.
func (j *Job) persist(ctx context.Context, o *types.OrderFilled, res *Result) error {
	err := j.store.InsertOrder(ctx, o)
	switch {
	case errors.Is(err, data.ErrDuplicateOrder):
		res.Duplicates++
		j.metrics.IncOrdersDuplicate()
		j.log.Warnw("transaction_duplicate", "tx_hash", o.TxHash, "height", o.Height)
		return nil
	case err != nil:
		res.Failed++
		j.metrics.IncOrdersFailed()
		j.log.Errorw("transaction_insert_failed", "tx_hash", o.TxHash, "height", o.Height, "error", err)
		return err
	}

	res.Inserted++
	j.metrics.IncOrdersInserted()
	j.log.Debugw("transaction_inserted", "tx_hash", o.TxHash)
	if j.cfg.Address != "" && o.Sender == j.cfg.Address {
		j.log.Infow("watched_address_order",
			"tx_hash", o.TxHash,
			"sender", o.Sender,
			"filler", o.Filler,
			"amount_in", o.AmountIn,
			"amount_out", o.AmountOut,
			"source_domain", o.SourceDomain,
			"solver_revenue", o.SolverRevenue,
			"height", o.Height,
			"code", o.Code,
			"ingestion_timestamp", o.IngestionTimestamp,
		)
	}

	if j.publisher == nil {
		return nil
	}
	start := time.Now()
	err = j.publisher.PublishOrder(ctx, o)
	j.metrics.RecordPublish(err, time.Since(start).Seconds())
	if err != nil {
		res.Failed++
		j.log.Errorw("order_publish_failed", "tx_hash", o.TxHash, "error", err)
		return fmt.Errorf("failed to publish order %s: %w", o.TxHash, err)
	}
	return nil
}

func (j *Job) logSummary(res Result) {
	j.log.Infow("job_summary",
		"watermark", res.Watermark,
		"fetched", res.Fetched,
		"inserted", res.Inserted,
		"duplicates", res.Duplicates,
		"failed", res.Failed,
		"malformed", res.Malformed,
	)
}
