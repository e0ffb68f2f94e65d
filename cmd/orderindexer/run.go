package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/orderfill-indexer/internal/chainclient/cosmos"
	"github.com/ava-labs/orderfill-indexer/pkg/api"
	"github.com/ava-labs/orderfill-indexer/pkg/data/store"
	"github.com/ava-labs/orderfill-indexer/pkg/ingest"
	"github.com/ava-labs/orderfill-indexer/pkg/kafka"
	"github.com/ava-labs/orderfill-indexer/pkg/metrics"
	"github.com/ava-labs/orderfill-indexer/pkg/scheduler"
	"github.com/ava-labs/orderfill-indexer/pkg/utils"
)

const shutdownTimeout = 5 * time.Second

func run(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"interval", cfg.Interval,
		"address", cfg.Address,
		"apiURL", cfg.APIURL,
		"contract", cfg.Contract,
		"httpTimeout", cfg.HTTPTimeout,
		"saveRaw", cfg.SaveRaw,
		"onInsertError", cfg.Policy,
		"exitOnError", cfg.ExitOnError,
		"store", cfg.Store.Backend,
		"apiAddr", cfg.APIAddr,
		"publish", cfg.Publish,
		"kafkaTopic", cfg.Kafka.Topic,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
	)

	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, cfg.MetricsLabels)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.Open(ctx, cfg.Store, sugar)
	if err != nil {
		return fmt.Errorf("failed to open order store: %w", err)
	}
	defer repo.Close()

	searcher, err := cosmos.New(cfg.APIURL, cosmos.WithTimeout(cfg.HTTPTimeout), cosmos.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to create chain client: %w", err)
	}

	opts := []ingest.Option{ingest.WithMetrics(m)}
	var producer *kafka.Producer
	if cfg.Publish {
		if err := kafka.EnsureOrdersTopic(ctx, cfg.Kafka, sugar); err != nil {
			return fmt.Errorf("failed to ensure kafka topic exists: %w", err)
		}
		producer, err = kafka.NewProducer(ctx, cfg.Kafka.ConfigMap(), sugar)
		if err != nil {
			return fmt.Errorf("failed to create kafka producer: %w", err)
		}
		defer producer.Close(cfg.Kafka.FlushTimeout)
		opts = append(opts, ingest.WithPublisher(kafka.NewOrderPublisher(producer, cfg.Kafka.Topic)))
	}

	job, err := ingest.New(repo, searcher, sugar, ingest.Config{
		Contract: cfg.Contract,
		Address:  cfg.Address,
		SaveRaw:  cfg.SaveRaw,
		Policy:   cfg.Policy,
	}, opts...)
	if err != nil {
		return fmt.Errorf("failed to create ingestion job: %w", err)
	}

	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry, metrics.WithHealthCheck(repo.Ping))
	metricsErrCh := metricsServer.Start()
	sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())

	var apiServer *api.Server
	var apiErrCh <-chan error
	if cfg.APIAddr != "" {
		apiServer = api.NewServer(cfg.APIAddr, repo, sugar)
		apiErrCh = apiServer.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Start(gctx, job, cfg.Interval, sugar, cfg.ExitOnError)
	})
	g.Go(func() error {
		return watchServer(gctx, "metrics", metricsErrCh)
	})
	if apiErrCh != nil {
		g.Go(func() error {
			return watchServer(gctx, "api", apiErrCh)
		})
	}
	if producer != nil {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case err := <-producer.Errors():
				if err != nil {
					return fmt.Errorf("kafka producer failed: %w", err)
				}
				return nil
			}
		})
	}

	err = g.Wait()
	if err != nil {
		sugar.Errorw("run failed", "error", err)
	}

	shutdown(sugar, metricsServer, apiServer)
	sugar.Info("shutdown complete")
	return err
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// watchServer returns the server's error, or nil once ctx is done.
func watchServer(ctx context.Context, name string, errCh <-chan error) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s server failed: %w", name, err)
		}
		return nil
	}
}

func shutdown(log *zap.SugaredLogger, metricsServer *metrics.Server, apiServer *api.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	servers := map[string]shutdowner{"metrics": metricsServer}
	if apiServer != nil {
		servers["api"] = apiServer
	}
	for name, s := range servers {
		log.Infof("shutting down %s server", name)
		if err := s.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			log.Warnw("server shutdown error", "server", name, "error", err)
		}
	}
}
