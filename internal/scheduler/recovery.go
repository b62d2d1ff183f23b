package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/metrics"
	"github.com/ErlanBelekov/journey-engine/internal/queue"
	"github.com/ErlanBelekov/journey-engine/internal/repository"
)

type RecoveryReport struct {
	Enqueued    int
	AlreadyLive int
	Failed      int
}

// Recovery re-enqueues the current action of every unfinished employee
// journey. It rebuilds the queue from instance state after a restart, and
// on an interval for instances whose next job was never written.
type Recovery struct {
	queue     *queue.Scheduler
	instances repository.InstanceRepository
	templates repository.TemplateRepository
	logger    *slog.Logger
}

func NewRecovery(q *queue.Scheduler, instances repository.InstanceRepository, templates repository.TemplateRepository, logger *slog.Logger) *Recovery {
	return &Recovery{
		queue:     q,
		instances: instances,
		templates: templates,
		logger:    logger.With("component", "recovery"),
	}
}

// Start runs a recovery pass every interval until ctx is cancelled.
func (r *Recovery) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("recovery loop started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("recovery loop shut down")
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("recovery pass", "error", err)
			}
		}
	}
}

func (r *Recovery) Run(ctx context.Context) (RecoveryReport, error) {
	pending, err := r.instances.FindPendingActions(ctx)
	if err != nil {
		return RecoveryReport{}, fmt.Errorf("find pending actions: %w", err)
	}

	var report RecoveryReport
	for _, inst := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result, err := r.recover(ctx, inst)
		if err != nil {
			result = "failed"
			report.Failed++
			r.logger.Error("recover employee journey", "employee_journey_id", inst.ID, "error", err)
		}
		switch result {
		case "enqueued":
			report.Enqueued++
		case "already_live":
			report.AlreadyLive++
		}
		metrics.RecoveredTotal.WithLabelValues(result).Inc()
	}

	level := slog.LevelDebug
	if report.Enqueued > 0 || report.Failed > 0 {
		level = slog.LevelInfo
	}
	r.logger.Log(ctx, level, "recovery finished",
		"instances", len(pending),
		"enqueued", report.Enqueued,
		"already_live", report.AlreadyLive,
		"failed", report.Failed,
	)
	return report, nil
}

func (r *Recovery) recover(ctx context.Context, inst *domain.EmployeeJourney) (string, error) {
	tpl, err := r.templates.FindByID(ctx, inst.TemplateID)
	if err != nil {
		return "", fmt.Errorf("load template %s: %w", inst.TemplateID, err)
	}
	action, ok := tpl.ActionAt(inst.CurrentActionIndex)
	if !ok {
		return "", fmt.Errorf("current action %d: %w", inst.CurrentActionIndex, domain.ErrActionNotFound)
	}

	req := queue.EnqueueRequest{
		EmployeeJourneyID: inst.ID,
		Action:            action,
		At:                inst.ScheduleFor(action.ID),
	}
	if inst.CurrentActionIndex == 0 {
		req.After = inst.StartDate
	}
	if req.At == nil {
		at, err := r.queue.Resolve(req)
		if err != nil {
			return "", err
		}
		scheduled := inst.WithSchedule(action.ID, at)
		if err := r.instances.Update(ctx, &scheduled); err != nil {
			return "", fmt.Errorf("persist schedule: %w", err)
		}
		req.At = &at
	}

	_, err = r.queue.Enqueue(ctx, req)
	if errors.Is(err, domain.ErrDuplicateJob) {
		return "already_live", nil
	}
	if err != nil {
		return "", err
	}
	return "enqueued", nil
}
