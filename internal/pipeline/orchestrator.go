// Package pipeline runs the server's background jobs: the scheduled archive
// export and the on-chain resolution sync.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator manages the background job goroutines. Either job may be nil.
type Orchestrator struct {
	chainSync    *ChainSync
	archiver     *Archiver
	syncInterval time.Duration
	archiveCron  string
	logger       *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	chainSync *ChainSync,
	archiver *Archiver,
	syncInterval time.Duration,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		chainSync:    chainSync,
		archiver:     archiver,
		syncInterval: syncInterval,
		archiveCron:  archiveCron,
		logger:       logger.With(slog.String("component", "pipeline")),
	}
}

// Enabled reports whether there is any job to run.
func (o *Orchestrator) Enabled() bool {
	return (o.chainSync != nil && o.syncInterval > 0) || (o.archiver != nil && o.archiveCron != "")
}

// Run starts every configured job as a concurrent goroutine using an errgroup.
// It returns nil on a clean shutdown; if any job fails, the errgroup cancels
// the shared context and Run returns that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("sync_interval", o.syncInterval),
		slog.String("archive_cron", o.archiveCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.chainSync != nil && o.syncInterval > 0 {
		g.Go(func() error {
			err := o.chainSync.RunLoop(ctx, o.syncInterval)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("chain sync: %w", err)
		})
	}

	if o.archiver != nil && o.archiveCron != "" {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
