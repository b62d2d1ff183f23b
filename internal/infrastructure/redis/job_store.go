// Package redis provides a Redis-backed queue.JobStore.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/queue"
)

// JobStore keeps each job in a hash and indexes it in sorted sets: waiting
// by notBefore, active by heartbeat, and completed, failed and all jobs by
// sequence. Zero padded ids make equal scores sort in enqueue order.
type JobStore struct {
	client redis.UniversalClient
	prefix string
}

func NewJobStore(client redis.UniversalClient, prefix string) *JobStore {
	if prefix == "" {
		prefix = "journeys"
	}
	return &JobStore{client: client, prefix: prefix}
}

var _ queue.JobStore = (*JobStore)(nil)

// NewClient connects to a redis:// or rediss:// URL and pings it.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *JobStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *JobStore) jobKey(id string) string { return s.key("job", id) }

func (s *JobStore) stateKeys() []string {
	return []string{
		s.key("waiting"),
		s.key("active"),
		s.key("completed"),
		s.key("failed"),
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func (s *JobStore) Insert(ctx context.Context, job *domain.ScheduledJob) (*domain.ScheduledJob, error) {
	live := s.key("live", job.EmployeeJourneyID, job.ActionID)
	keys := []string{s.key("seq"), live, s.key("waiting"), s.key("jobs")}
	args := []any{
		s.prefix,
		job.NotBefore.UnixMilli(),
		"employee_journey_id", job.EmployeeJourneyID,
		"action_id", job.ActionID,
		"channel", string(job.Channel),
		"not_before", formatTime(job.NotBefore),
		"state", string(domain.JobWaiting),
		"attempts", 0,
		"max_attempts", job.MaxAttempts,
		"created_at", formatTime(job.CreatedAt),
		"updated_at", formatTime(job.UpdatedAt),
	}

	id, err := insertScript.Run(ctx, s.client, keys, args...).Text()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrDuplicateJob
	}
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *JobStore) Due(ctx context.Context, asOf time.Time, limit int) ([]*domain.ScheduledJob, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.key("waiting"), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(asOf.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("due jobs: %w", err)
	}
	return s.load(ctx, ids)
}

func (s *JobStore) Claim(ctx context.Context, workerID string, asOf time.Time, limit int) ([]*domain.ScheduledJob, error) {
	keys := []string{s.key("waiting"), s.key("active")}
	ids, err := claimScript.Run(ctx, s.client, keys, s.prefix, asOf.UnixMilli(), limit, workerID, formatTime(asOf)).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	return s.load(ctx, ids)
}

func (s *JobStore) Activate(ctx context.Context, jobID, workerID string, at time.Time) (*domain.ScheduledJob, error) {
	keys := []string{s.key("waiting"), s.key("active")}
	rc, err := activateScript.Run(ctx, s.client, keys, s.prefix, jobID, workerID, formatTime(at), at.UnixMilli()).Int()
	if err != nil {
		return nil, fmt.Errorf("activate job: %w", err)
	}
	switch rc {
	case 0:
		return nil, domain.ErrJobNotFound
	case -1:
		return nil, domain.ErrJobNotWaiting
	}
	return s.Get(ctx, jobID)
}

type transition struct {
	op        string
	at        time.Time
	notBefore time.Time
	lastError string
}

func (s *JobStore) transition(ctx context.Context, lease domain.Lease, t transition) error {
	args := []any{
		s.prefix,
		lease.JobID,
		lease.Attempt,
		t.op,
		formatTime(t.at),
		t.at.UnixMilli(),
		formatTime(t.notBefore),
		t.notBefore.UnixMilli(),
		t.lastError,
	}
	rc, err := transitionScript.Run(ctx, s.client, s.stateKeys(), args...).Int()
	if err != nil {
		return fmt.Errorf("%s job: %w", t.op, err)
	}
	switch rc {
	case 0:
		return domain.ErrJobNotFound
	case -1:
		return domain.ErrJobNotActive
	}
	return nil
}

func (s *JobStore) Heartbeat(ctx context.Context, lease domain.Lease, at time.Time) error {
	return s.transition(ctx, lease, transition{op: "heartbeat", at: at})
}

func (s *JobStore) Complete(ctx context.Context, lease domain.Lease, at time.Time) error {
	return s.transition(ctx, lease, transition{op: "complete", at: at})
}

func (s *JobStore) Requeue(ctx context.Context, lease domain.Lease, lastError string, notBefore, at time.Time) error {
	return s.transition(ctx, lease, transition{op: "requeue", at: at, notBefore: notBefore, lastError: lastError})
}

func (s *JobStore) Fail(ctx context.Context, lease domain.Lease, lastError string, at time.Time) error {
	return s.transition(ctx, lease, transition{op: "fail", at: at, lastError: lastError})
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*domain.ScheduledJob, error) {
	fields, err := s.client.HGetAll(ctx, s.jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrJobNotFound
	}
	return parseJob(fields)
}

func (s *JobStore) List(ctx context.Context, filter queue.ListFilter) ([]*domain.ScheduledJob, error) {
	ids, err := s.client.ZRange(ctx, s.key("jobs"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := jobs[:0]
	for _, j := range jobs {
		if filter.State != "" && j.State != filter.State {
			continue
		}
		if filter.EmployeeJourneyID != "" && j.EmployeeJourneyID != filter.EmployeeJourneyID {
			continue
		}
		out = append(out, j)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *JobStore) Counts(ctx context.Context) (map[domain.JobState]int, error) {
	states := []domain.JobState{domain.JobWaiting, domain.JobActive, domain.JobCompleted, domain.JobFailed}
	keys := s.stateKeys()

	cmds := make([]*redis.IntCmd, len(keys))
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.ZCard(ctx, k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	counts := make(map[domain.JobState]int, len(states))
	for i, state := range states {
		counts[state] = int(cmds[i].Val())
	}
	return counts, nil
}

func (s *JobStore) Remove(ctx context.Context, jobID string) error {
	keys := append(s.stateKeys(), s.key("jobs"))
	rc, err := removeScript.Run(ctx, s.client, keys, s.prefix, jobID).Int()
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	switch rc {
	case 0:
		return domain.ErrJobNotFound
	case -1:
		return fmt.Errorf("%w: job %s is mid-dispatch", domain.ErrInvalidOperation, jobID)
	}
	return nil
}

func (s *JobStore) Clear(ctx context.Context) (int, error) {
	keys := append(s.stateKeys(), s.key("jobs"))
	n, err := clearScript.Run(ctx, s.client, keys, s.prefix).Int()
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return n, nil
}

func (s *JobStore) Stale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.ScheduledJob, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.key("active"), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("stale jobs: %w", err)
	}
	return s.load(ctx, ids)
}

// load fetches jobs by id in the given order, skipping ids whose hash
// disappeared in between.
func (s *JobStore) load(ctx context.Context, ids []string) ([]*domain.ScheduledJob, error) {
	jobs := []*domain.ScheduledJob{}
	if len(ids) == 0 {
		return jobs, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, s.jobKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		j, err := parseJob(fields)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func parseJob(f map[string]string) (*domain.ScheduledJob, error) {
	j := &domain.ScheduledJob{
		ID:                f["id"],
		EmployeeJourneyID: f["employee_journey_id"],
		ActionID:          f["action_id"],
		Channel:           domain.ChannelType(f["channel"]),
		State:             domain.JobState(f["state"]),
	}

	var err error
	if j.Seq, err = strconv.ParseInt(f["seq"], 10, 64); err != nil {
		return nil, fmt.Errorf("parse job %s seq: %w", j.ID, err)
	}
	if j.Attempts, err = strconv.Atoi(f["attempts"]); err != nil {
		return nil, fmt.Errorf("parse job %s attempts: %w", j.ID, err)
	}
	if j.MaxAttempts, err = strconv.Atoi(f["max_attempts"]); err != nil {
		return nil, fmt.Errorf("parse job %s max_attempts: %w", j.ID, err)
	}

	for field, dst := range map[string]*time.Time{
		"not_before": &j.NotBefore,
		"created_at": &j.CreatedAt,
		"updated_at": &j.UpdatedAt,
	} {
		if *dst, err = time.Parse(time.RFC3339Nano, f[field]); err != nil {
			return nil, fmt.Errorf("parse job %s %s: %w", j.ID, field, err)
		}
	}
	for field, dst := range map[string]**time.Time{
		"claimed_at":   &j.ClaimedAt,
		"heartbeat_at": &j.HeartbeatAt,
		"completed_at": &j.CompletedAt,
	} {
		raw, ok := f[field]
		if !ok || raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse job %s %s: %w", j.ID, field, err)
		}
		*dst = &t
	}
	if v, ok := f["claimed_by"]; ok && v != "" {
		j.ClaimedBy = &v
	}
	if v, ok := f["last_error"]; ok && v != "" {
		j.LastError = &v
	}
	return j, nil
}
