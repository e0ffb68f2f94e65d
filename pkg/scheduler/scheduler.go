package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Runner is one unit of scheduled work, e.g. an ingestion cycle.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

// Start runs job immediately, then again interval after each run finishes, so
// runs never overlap and a slow run delays the next one.
//
// A failed run is logged and the loop continues, unless exitOnError is set,
// in which case the error is returned. Start returns nil once ctx is cancelled.
func Start(
	ctx context.Context,
	job Runner,
	interval time.Duration,
	log *zap.SugaredLogger,
	exitOnError bool,
) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}

	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-t.C:
			if err := job.Run(ctx); err != nil {
				if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
					log.Info("shutting down")
					return nil
				}
				log.Errorw("job failed", "error", err)
				if exitOnError {
					return fmt.Errorf("job failed: %w", err)
				}
			}
			t.Reset(interval)
		}
	}
}
