package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ErlanBelekov/journey-engine/config"
	"github.com/ErlanBelekov/journey-engine/internal/scheduler"
)

// RunEngine re-enqueues work lost by a previous process, then runs the
// processor, reaper and periodic recovery until ctx is cancelled.
func RunEngine(ctx context.Context, cfg *config.Config, s *Stores, channels scheduler.Dispatcher, logger *slog.Logger) error {
	recovery := scheduler.NewRecovery(s.Queue, s.Instances, s.Templates, logger)
	report, err := recovery.Run(ctx)
	if err != nil {
		return fmt.Errorf("recovery: %w", err)
	}
	logger.Info("recovery complete",
		"enqueued", report.Enqueued,
		"already_live", report.AlreadyLive,
		"failed", report.Failed,
	)

	processor := scheduler.NewProcessor(s.Queue, s.Instances, s.Templates, s.Attempts, channels, logger, scheduler.ProcessorOptions{
		Concurrency:       cfg.WorkerCount,
		PollInterval:      cfg.PollInterval(),
		DispatchTimeout:   cfg.DispatchTimeout(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
	})
	reaper := scheduler.NewReaper(s.Queue, s.Instances, logger, cfg.ReaperInterval(), cfg.StaleAfter())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		processor.Start(ctx)
		return nil
	})
	g.Go(func() error {
		reaper.Start(ctx)
		return nil
	})
	g.Go(func() error {
		recovery.Start(ctx, cfg.RecoveryInterval())
		return nil
	})
	return g.Wait()
}
