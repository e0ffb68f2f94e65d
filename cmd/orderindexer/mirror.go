package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/orderfill-indexer/pkg/data/store"
	"github.com/ava-labs/orderfill-indexer/pkg/kafka"
	"github.com/ava-labs/orderfill-indexer/pkg/kafka/processor"
	"github.com/ava-labs/orderfill-indexer/pkg/metrics"
	"github.com/ava-labs/orderfill-indexer/pkg/utils"
)

func mirror(c *cli.Context) error {
	cfg, err := buildMirrorConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"store", cfg.Store.Backend,
		"brokers", cfg.Kafka.Brokers,
		"topic", cfg.Kafka.Topic,
		"dlqTopic", cfg.Kafka.DLQTopic,
		"groupID", cfg.Kafka.GroupID,
		"autoOffsetReset", cfg.Kafka.AutoOffsetReset,
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

	consumer, err := kafka.NewConsumer(ctx, sugar, cfg.Kafka, processor.NewOrderProcessor(repo, sugar), m)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry, metrics.WithHealthCheck(repo.Ping))
	metricsErrCh := metricsServer.Start()
	sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Start(gctx)
	})
	g.Go(func() error {
		return watchServer(gctx, "metrics", metricsErrCh)
	})

	err = g.Wait()
	if err != nil {
		sugar.Errorw("mirror failed", "error", err)
	}

	shutdown(sugar, metricsServer, nil)
	sugar.Info("shutdown complete")
	return err
}
