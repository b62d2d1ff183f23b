package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ErlanBelekov/journey-engine/internal/channel"
	"github.com/ErlanBelekov/journey-engine/internal/domain"
	ctxlog "github.com/ErlanBelekov/journey-engine/internal/log"
	"github.com/ErlanBelekov/journey-engine/internal/metrics"
	"github.com/ErlanBelekov/journey-engine/internal/queue"
	"github.com/ErlanBelekov/journey-engine/internal/repository"
	"github.com/ErlanBelekov/journey-engine/internal/requestid"
)

// Dispatcher sends one action through its channel. *channel.Registry
// satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, action domain.Action) channel.Result
}

type ProcessorOptions struct {
	// ID identifies this processor in claims. Defaults to hostname-pid.
	ID                string
	Concurrency       int
	PollInterval      time.Duration
	DispatchTimeout   time.Duration
	HeartbeatInterval time.Duration
	Clock             func() time.Time
}

// Processor claims due jobs, dispatches their action and advances the
// owning employee journey.
type Processor struct {
	id        string
	queue     *queue.Scheduler
	instances repository.InstanceRepository
	templates repository.TemplateRepository
	attempts  repository.AttemptRepository
	channels  Dispatcher
	logger    *slog.Logger

	pollInterval      time.Duration
	dispatchTimeout   time.Duration
	heartbeatInterval time.Duration
	now               func() time.Time

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewProcessor(
	q *queue.Scheduler,
	instances repository.InstanceRepository,
	templates repository.TemplateRepository,
	attempts repository.AttemptRepository,
	channels Dispatcher,
	logger *slog.Logger,
	opts ProcessorOptions,
) *Processor {
	if opts.ID == "" {
		hostname, _ := os.Hostname()
		opts.ID = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 30 * time.Second
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Processor{
		id:                opts.ID,
		queue:             q,
		instances:         instances,
		templates:         templates,
		attempts:          attempts,
		channels:          channels,
		logger:            logger.With("component", "processor", "worker_id", opts.ID),
		pollInterval:      opts.PollInterval,
		dispatchTimeout:   opts.DispatchTimeout,
		heartbeatInterval: opts.HeartbeatInterval,
		now:               opts.Clock,
		sem:               make(chan struct{}, opts.Concurrency),
	}
}

// Start polls until ctx is cancelled, then waits for in-flight jobs. Jobs
// already claimed run to completion on a context detached from ctx, bounded
// by the dispatch timeout.
func (p *Processor) Start(ctx context.Context) {
	metrics.ProcessorStartTime.SetToCurrentTime()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.logger.Info("processor started", "concurrency", cap(p.sem))

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			metrics.ProcessorShutdownsTotal.Inc()
			p.logger.Info("processor shut down")
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

// RunOnce claims one batch, processes it and waits for it to finish. It
// returns the number of jobs claimed.
func (p *Processor) RunOnce(ctx context.Context) int {
	n := p.processBatch(ctx)
	p.wg.Wait()
	return n
}

func (p *Processor) processBatch(ctx context.Context) int {
	available := cap(p.sem) - len(p.sem)
	if available == 0 {
		return 0
	}

	jobs, err := p.queue.Claim(ctx, p.id, available)
	if err != nil {
		p.logger.Error("claim jobs", "error", err)
		return 0
	}

	if len(jobs) == 0 {
		return 0
	}

	p.logger.Debug("claimed jobs", "count", len(jobs), "slots_used", len(p.sem)+len(jobs), "slots_total", cap(p.sem))

	jobCtx := context.WithoutCancel(ctx)
	for _, job := range jobs {
		p.sem <- struct{}{}
		p.wg.Add(1)
		go func(j *domain.ScheduledJob) {
			metrics.JobsInFlight.Inc()
			defer metrics.JobsInFlight.Dec()
			defer func() { <-p.sem }()
			defer p.wg.Done()
			p.runJob(jobCtx, j)
		}(job)
	}
	return len(jobs)
}

func (p *Processor) runJob(ctx context.Context, job *domain.ScheduledJob) {
	ctx = ctxlog.WithJob(ctx, job.ID, job.EmployeeJourneyID)
	ctx = requestid.WithRequestID(ctx, requestid.ForAttempt(job.ID, job.Attempts))
	metrics.JobPickupLatency.Observe(max(0, p.now().Sub(job.NotBefore).Seconds()))

	inst, err := p.instances.FindByID(ctx, job.EmployeeJourneyID)
	switch {
	case errors.Is(err, domain.ErrInstanceNotFound):
		p.drop(ctx, job, nil, "employee journey not found")
		return
	case err != nil:
		// The job stays active and its heartbeat never starts, so the
		// reaper returns it to waiting after the stale cutoff.
		p.logger.ErrorContext(ctx, "load employee journey", "error", err)
		return
	}
	if inst.IsTerminal() {
		p.skip(ctx, job, fmt.Sprintf("employee journey is %s", inst.Status))
		return
	}

	tpl, err := p.templates.FindByID(ctx, inst.TemplateID)
	switch {
	case errors.Is(err, domain.ErrTemplateNotFound):
		p.drop(ctx, job, inst, "journey template not found")
		return
	case err != nil:
		p.logger.ErrorContext(ctx, "load journey template", "error", err)
		return
	}

	idx, action, ok := tpl.FindAction(job.ActionID)
	if !ok {
		p.drop(ctx, job, inst, domain.ErrActionNotFound.Error())
		return
	}
	if idx != inst.CurrentActionIndex {
		p.skip(ctx, job, fmt.Sprintf("action %d is not the current action %d", idx, inst.CurrentActionIndex))
		return
	}

	if inst.Status == domain.InstancePending {
		started := inst.MarkInProgress()
		if err := p.instances.Update(ctx, &started); err != nil {
			p.logger.ErrorContext(ctx, "mark employee journey in progress", "error", err)
			return
		}
		inst = &started
	}

	result, ok := p.dispatch(ctx, job, action)
	if !ok {
		return
	}
	if result.OK() {
		p.succeed(ctx, job, inst, tpl, idx)
		return
	}
	p.fail(ctx, job, inst, result)
}

// dispatch runs the action under a heartbeat and records the attempt. It
// reports false when the attempt could not be recorded, in which case the
// action was not sent.
func (p *Processor) dispatch(ctx context.Context, job *domain.ScheduledJob, action domain.Action) (channel.Result, bool) {
	startedAt := p.now()

	// Open the attempt record before dispatching so a worker crash leaves a
	// visible incomplete entry (completed_at = NULL) in the history.
	attempt, err := p.attempts.CreateAttempt(ctx, &domain.JobAttempt{
		JobID:      job.ID,
		AttemptNum: job.Attempts,
		WorkerID:   p.id,
		StartedAt:  startedAt,
	})
	if err != nil {
		// Writes after this one would fail too. The job stays active and the
		// reaper reschedules it once the heartbeat goes stale.
		p.logger.ErrorContext(ctx, "create attempt record, aborting run", "error", err)
		return channel.Result{}, false
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go p.heartbeat(heartbeatCtx, job.Lease())

	p.logger.InfoContext(ctx, "dispatching action", "channel", action.Type, "action_id", action.ID, "attempt", job.Attempts)

	dispatchCtx, cancel := context.WithTimeout(ctx, p.dispatchTimeout)
	result := p.channels.Dispatch(dispatchCtx, action)
	cancel()

	status := "success"
	var errMsg *string
	if !result.OK() {
		status = "failure"
		msg := result.Err.Error()
		errMsg = &msg
	}
	var statusCode *int
	if result.StatusCode != 0 {
		statusCode = &result.StatusCode
	}
	metrics.DispatchDuration.WithLabelValues(string(action.Type), status).Observe(result.Duration.Seconds())
	p.closeAttempt(ctx, attempt, statusCode, errMsg, p.now().Sub(startedAt).Milliseconds())

	return result, true
}

// succeed saves the advanced instance before it completes the job. A job
// whose instance write failed is still active, so the reaper returns it and
// the action runs again. A job that loses its lease after the write comes
// back stale and is skipped.
func (p *Processor) succeed(ctx context.Context, job *domain.ScheduledJob, inst *domain.EmployeeJourney, tpl *domain.Template, idx int) {
	next := inst.MarkActionCompleted(job.ActionID).AdvanceStatus(tpl.Len())
	nextAction, hasNext := tpl.ActionAt(idx + 1)
	if next.Status == domain.InstanceCompleted || !hasNext {
		if err := p.instances.Update(ctx, &next); err != nil {
			p.logger.ErrorContext(ctx, "persist completed employee journey", "error", err)
			return
		}
		p.complete(ctx, job)
		metrics.InstancesFinishedTotal.WithLabelValues(string(next.Status)).Inc()
		p.logger.InfoContext(ctx, "employee journey completed", "actions", tpl.Len())
		return
	}

	// The next step's instant is written together with the advanced pointer,
	// before its job exists, so the job never sees a stale instance.
	req := queue.EnqueueRequest{
		EmployeeJourneyID: next.ID,
		Action:            nextAction,
		At:                next.ScheduleFor(nextAction.ID),
	}
	at, err := p.queue.Resolve(req)
	if err != nil {
		p.logger.ErrorContext(ctx, "resolve next action schedule", "action_id", nextAction.ID, "error", err)
		failed := next.MarkActionFailed(err.Error())
		if p.persistFailed(ctx, &failed) == nil {
			p.complete(ctx, job)
		}
		return
	}
	next = next.WithSchedule(nextAction.ID, at)
	if err := p.instances.Update(ctx, &next); err != nil {
		p.logger.ErrorContext(ctx, "persist employee journey", "error", err)
		return
	}
	p.complete(ctx, job)

	req.At = &at
	queued, err := p.queue.Enqueue(ctx, req)
	switch {
	case errors.Is(err, domain.ErrDuplicateJob):
		p.logger.DebugContext(ctx, "next action already queued", "action_id", nextAction.ID)
	case err != nil:
		// Periodic recovery enqueues it from the saved instance.
		p.logger.ErrorContext(ctx, "enqueue next action", "action_id", nextAction.ID, "error", err)
	default:
		p.logger.InfoContext(ctx, "action completed, next action queued",
			"completed_action_id", job.ActionID,
			"next_action_id", nextAction.ID,
			"next_job_id", queued.ID,
			"not_before", queued.NotBefore,
		)
	}
}

func (p *Processor) complete(ctx context.Context, job *domain.ScheduledJob) {
	if err := p.queue.MarkCompleted(ctx, job.Lease()); err != nil {
		// The instance has moved on, so the job is skipped when it returns.
		p.logger.WarnContext(ctx, "mark job completed", "error", err)
		return
	}
	metrics.JobsFinishedTotal.WithLabelValues("completed").Inc()
}

func (p *Processor) fail(ctx context.Context, job *domain.ScheduledJob, inst *domain.EmployeeJourney, result channel.Result) {
	errMsg := result.Err.Error()

	if !result.Permanent && !job.Exhausted() {
		decision, err := p.queue.MarkFailedForRetry(ctx, job, errMsg)
		if err != nil {
			p.logger.WarnContext(ctx, "reschedule job", "error", err)
			return
		}
		metrics.JobsFinishedTotal.WithLabelValues("retry").Inc()
		p.logger.WarnContext(ctx, "dispatch failed, will retry",
			"error", errMsg,
			"attempt", job.Attempts,
			"max_attempts", job.MaxAttempts,
			"retry_at", decision.RetryAt,
		)
		return
	}

	// The instance fails first so recovery never re-enqueues an action
	// whose job already failed.
	failed := inst.MarkActionFailed(errMsg)
	if err := p.persistFailed(ctx, &failed); err != nil {
		return
	}
	if err := p.queue.MarkTerminallyFailed(ctx, job.Lease(), errMsg); err != nil {
		p.logger.WarnContext(ctx, "mark job failed", "error", err)
		return
	}
	metrics.JobsFinishedTotal.WithLabelValues("failed").Inc()
	p.logger.WarnContext(ctx, "job permanently failed", "error", errMsg, "attempts", job.Attempts, "permanent", result.Permanent)
}

// drop fails a job whose data is inconsistent. inst is nil when the
// instance itself is missing.
func (p *Processor) drop(ctx context.Context, job *domain.ScheduledJob, inst *domain.EmployeeJourney, reason string) {
	if err := p.queue.MarkTerminallyFailed(ctx, job.Lease(), "dropped: "+reason); err != nil {
		p.logger.WarnContext(ctx, "drop job", "error", err)
		return
	}
	metrics.JobsFinishedTotal.WithLabelValues("dropped").Inc()
	p.logger.ErrorContext(ctx, "job dropped", "reason", reason, "action_id", job.ActionID)

	if inst == nil || inst.IsTerminal() {
		return
	}
	failed := inst.MarkActionFailed(reason)
	_ = p.persistFailed(ctx, &failed)
}

// skip completes a job that no longer matches its instance without
// dispatching it.
func (p *Processor) skip(ctx context.Context, job *domain.ScheduledJob, reason string) {
	if err := p.queue.MarkCompleted(ctx, job.Lease()); err != nil {
		p.logger.WarnContext(ctx, "complete stale job", "error", err)
		return
	}
	metrics.JobsFinishedTotal.WithLabelValues("stale").Inc()
	p.logger.WarnContext(ctx, "stale job completed without dispatch", "reason", reason)
}

func (p *Processor) persistFailed(ctx context.Context, failed *domain.EmployeeJourney) error {
	if err := p.instances.Update(ctx, failed); err != nil {
		p.logger.ErrorContext(ctx, "persist failed employee journey", "error", err)
		return err
	}
	metrics.InstancesFinishedTotal.WithLabelValues(string(domain.InstanceFailed)).Inc()
	return nil
}

// closeAttempt writes the dispatch outcome to the attempt record.
func (p *Processor) closeAttempt(ctx context.Context, attempt *domain.JobAttempt, statusCode *int, errMsg *string, durationMS int64) {
	if err := p.attempts.CompleteAttempt(ctx, attempt.ID, statusCode, errMsg, durationMS); err != nil {
		p.logger.ErrorContext(ctx, "complete attempt record", "error", err)
	}
}

func (p *Processor) heartbeat(ctx context.Context, lease domain.Lease) {
	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := p.queue.Heartbeat(ctx, lease)
			if errors.Is(err, domain.ErrJobNotActive) {
				p.logger.WarnContext(ctx, "lease lost during dispatch")
				return
			}
			if err != nil {
				p.logger.WarnContext(ctx, "heartbeat failed", "error", err)
			}
		}
	}
}
