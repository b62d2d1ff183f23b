package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	ctxlog "github.com/ErlanBelekov/journey-engine/internal/log"
	"github.com/ErlanBelekov/journey-engine/internal/metrics"
	"github.com/ErlanBelekov/journey-engine/internal/queue"
	"github.com/ErlanBelekov/journey-engine/internal/repository"
)

const reapBatch = 100

// Reaper returns jobs whose worker stopped heartbeating to the queue.
type Reaper struct {
	queue      *queue.Scheduler
	instances  repository.InstanceRepository
	logger     *slog.Logger
	interval   time.Duration
	staleAfter time.Duration
}

func NewReaper(q *queue.Scheduler, instances repository.InstanceRepository, logger *slog.Logger, interval, staleAfter time.Duration) *Reaper {
	return &Reaper{
		queue:      q,
		instances:  instances,
		logger:     logger.With("component", "reaper"),
		interval:   interval,
		staleAfter: staleAfter,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval, "stale_after", r.staleAfter)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper shut down")
			return
		case <-ticker.C:
			r.Reap(ctx)
		}
	}
}

// Reap runs one recovery cycle and refreshes the queue depth gauges.
func (r *Reaper) Reap(ctx context.Context) queue.StaleReport {
	start := time.Now()
	defer func() { metrics.ReaperCycleDuration.Observe(time.Since(start).Seconds()) }()

	report, err := r.queue.RecoverStale(ctx, r.staleAfter, reapBatch)
	if err != nil {
		r.logger.Error("recover stale jobs", "error", err)
	}

	if n := len(report.Requeued); n > 0 {
		metrics.ReaperRescuedTotal.WithLabelValues("requeued").Add(float64(n))
		r.logger.Warn("requeued stale jobs", "count", n)
	}
	if n := len(report.Failed); n > 0 {
		metrics.ReaperRescuedTotal.WithLabelValues("failed").Add(float64(n))
		r.logger.Warn("failed stale jobs, attempts exhausted", "count", n)
	}
	for _, job := range report.Failed {
		r.failInstance(ctxlog.WithJob(ctx, job.ID, job.EmployeeJourneyID), job)
	}

	r.refreshDepth(ctx)
	return report
}

func (r *Reaper) failInstance(ctx context.Context, job *domain.ScheduledJob) {
	inst, err := r.instances.FindByID(ctx, job.EmployeeJourneyID)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		return
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "load employee journey", "error", err)
		return
	}
	if inst.IsTerminal() {
		return
	}

	failed := inst.MarkActionFailed("action " + job.ActionID + ": worker heartbeat lost, attempts exhausted")
	if err := r.instances.Update(ctx, &failed); err != nil {
		r.logger.ErrorContext(ctx, "persist failed employee journey", "error", err)
		return
	}
	metrics.InstancesFinishedTotal.WithLabelValues(string(domain.InstanceFailed)).Inc()
}

func (r *Reaper) refreshDepth(ctx context.Context) {
	counts, err := r.queue.Counts(ctx)
	if err != nil {
		r.logger.Error("count jobs", "error", err)
		return
	}
	for state, n := range counts {
		metrics.QueueJobs.WithLabelValues(string(state)).Set(float64(n))
	}
}
