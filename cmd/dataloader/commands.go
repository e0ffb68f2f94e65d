package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ava-labs/orderfill-indexer/internal/chainclient/cosmos"
	"github.com/ava-labs/orderfill-indexer/internal/types"
	"github.com/ava-labs/orderfill-indexer/pkg/backfill"
	"github.com/ava-labs/orderfill-indexer/pkg/clickhouse"
	"github.com/ava-labs/orderfill-indexer/pkg/data"
	sqliterepo "github.com/ava-labs/orderfill-indexer/pkg/data/sqlite/orderrepo"
	"github.com/ava-labs/orderfill-indexer/pkg/data/store"
	"github.com/ava-labs/orderfill-indexer/pkg/utils"
)

type rootOptions struct {
	verbose  bool
	backend  string
	dbPath   string
	contract string
	saveRaw  bool

	log *zap.SugaredLogger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "dataloader",
		Short:         "Download, load and inspect order fills offline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := utils.NewSugaredLogger(opts.verbose)
			if err != nil {
				return err
			}
			opts.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVar(&opts.backend, "store", store.BackendSQLite, "Order store backend: sqlite or clickhouse (configured by CLICKHOUSE_* variables)")
	pf.StringVar(&opts.dbPath, "db", sqliterepo.DefaultPath, "SQLite database file")
	pf.StringVar(&opts.contract, "contract", cosmos.ContractAddress, "Contract whose fill_order messages are decoded")
	pf.BoolVar(&opts.saveRaw, "save-raw-tx", false, "Store raw tx responses in the audit table")

	root.AddCommand(
		newGetOrdersCmd(opts),
		newLoadCmd(opts),
		newSaveMissingCmd(opts),
		newOrdersCmd(opts),
	)
	return root
}

func (o *rootOptions) openStore(ctx context.Context) (data.OrderRepository, error) {
	cfg := store.Config{Backend: o.backend, SQLitePath: o.dbPath}
	if o.backend == store.BackendClickHouse {
		chCfg, err := clickhouse.Load()
		if err != nil {
			return nil, err
		}
		cfg.ClickHouse = chCfg
	}
	return store.Open(ctx, cfg, o.log)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newGetOrdersCmd(opts *rootOptions) *cobra.Command {
	var (
		dir     string
		apiURL  string
		fetchOp backfill.Options
	)
	cmd := &cobra.Command{
		Use:   "get_orders",
		Short: "Download the order_filled history to JSON page files",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			client, err := cosmos.New(apiURL)
			if err != nil {
				return fmt.Errorf("failed to create chain client: %w", err)
			}
			report, err := backfill.FetchPages(ctx, client, opts.contract, dir, fetchOp, opts.log)
			if err != nil {
				return fmt.Errorf("failed to download orders: %w", err)
			}
			opts.log.Infow("download finished",
				"pages", report.Pages,
				"collected", report.Collected,
				"total", report.Total,
				"dir", dir,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "orders", "Directory the page files are written to")
	cmd.Flags().StringVar(&apiURL, "api-url", cosmos.DefaultAPIURL, "Base URL of the chain LCD REST API")
	cmd.Flags().IntVar(&fetchOp.MaxAttempts, "max-pages", backfill.DefaultMaxAttempts, "Maximum number of pages to request")
	cmd.Flags().IntVar(&fetchOp.Limit, "limit", backfill.DefaultLimit, "Transactions per page")
	cmd.Flags().DurationVar(&fetchOp.Pause, "pause", backfill.DefaultPause, "Delay between pages")
	return cmd
}

type inputFlags struct {
	file string
	dir  string
}

func (in *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.file, "file", "", "Search response or page file to read")
	cmd.Flags().StringVar(&in.dir, "dir", "", "Directory of page files to read")
	cmd.MarkFlagsOneRequired("file", "dir")
	cmd.MarkFlagsMutuallyExclusive("file", "dir")
}

func newLoadCmd(opts *rootOptions) *cobra.Command {
	var (
		in  inputFlags
		all bool
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load orders from files, skipping those at or below the stored max height",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, opts, in, backfill.LoadOptions{
				Contract:           opts.contract,
				OnlyAboveWatermark: !all,
				SaveRaw:            opts.saveRaw,
			})
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "Load every order regardless of the stored max height")
	return cmd
}

func newSaveMissingCmd(opts *rootOptions) *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "save_missing",
		Short: "Store the orders from files whose tx hash is not stored yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, opts, in, backfill.LoadOptions{
				Contract:    opts.contract,
				OnlyMissing: true,
				SaveRaw:     opts.saveRaw,
			})
		},
	}
	in.register(cmd)
	return cmd
}

func runLoad(cmd *cobra.Command, opts *rootOptions, in inputFlags, loadOpts backfill.LoadOptions) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	responses, err := backfill.Read(in.file, in.dir)
	if err != nil {
		return err
	}

	repo, err := opts.openStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open order store: %w", err)
	}
	defer repo.Close()

	report, err := backfill.Load(ctx, repo, responses, loadOpts, opts.log)
	if report != nil {
		fmt.Fprintf(cmd.OutOrStdout(),
			"orders=%d inserted=%d duplicates=%d duplicate_hashes_in_files=%d skipped=%d failed=%d malformed=%d raw=%d\n",
			report.Orders, report.Inserted, report.Duplicates, report.DuplicateHashesInFiles,
			report.Skipped, report.Failed, report.Malformed, report.RawInserted)
	}
	return err
}

func newOrdersCmd(opts *rootOptions) *cobra.Command {
	var sender string
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Print stored orders as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			repo, err := opts.openStore(ctx)
			if err != nil {
				return fmt.Errorf("failed to open order store: %w", err)
			}
			defer repo.Close()

			var orders []types.OrderFilled
			if sender != "" {
				orders, err = repo.OrdersBySender(ctx, sender)
			} else {
				orders, err = repo.AllOrders(ctx)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for i := range orders {
				if err := enc.Encode(&orders[i]); err != nil {
					return fmt.Errorf("failed to write order: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sender, "sender", "", "Only print orders of this sender")
	return cmd
}
