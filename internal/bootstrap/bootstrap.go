// Package bootstrap builds the stores, queue and channel adapters selected
// by config. The cmd binaries share it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ErlanBelekov/journey-engine/config"
	"github.com/ErlanBelekov/journey-engine/internal/health"
	"github.com/ErlanBelekov/journey-engine/internal/infrastructure/memory"
	"github.com/ErlanBelekov/journey-engine/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/journey-engine/internal/infrastructure/redis"
	ctxlog "github.com/ErlanBelekov/journey-engine/internal/log"
	"github.com/ErlanBelekov/journey-engine/internal/queue"
	"github.com/ErlanBelekov/journey-engine/internal/repository"
)

func Logger(cfg *config.Config) *slog.Logger {
	return ctxlog.New(ctxlog.Options{
		Env:            cfg.Env,
		Level:          cfg.SlogLevel(),
		File:           cfg.LogFile,
		FileMaxMB:      cfg.LogFileMaxMB,
		FileMaxBackups: cfg.LogFileMaxBackups,
	})
}

type Stores struct {
	Templates repository.TemplateRepository
	Employees repository.EmployeeRepository
	Instances repository.InstanceRepository
	Attempts  repository.AttemptRepository
	Queue     *queue.Scheduler

	// Pingers names every remote dependency for the readiness probe.
	Pingers map[string]health.Pinger

	closers []func()
}

// Open connects the configured backends and applies the postgres schema.
// Close releases whatever Open acquired, also after an error.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	s := &Stores{Pingers: make(map[string]health.Pinger)}

	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		p, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return s, fmt.Errorf("db: %w", err)
		}
		s.closers = append(s.closers, p.Close)
		s.Pingers["postgres"] = p
		if err := postgres.Migrate(ctx, p); err != nil {
			return s, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("db connected")
		pool = p
	}

	switch cfg.Storage {
	case config.BackendPostgres:
		s.Templates = postgres.NewTemplateRepository(pool)
		s.Employees = postgres.NewEmployeeRepository(pool)
		s.Instances = postgres.NewInstanceRepository(pool)
		s.Attempts = postgres.NewAttemptRepository(pool)
	default:
		s.Templates = memory.NewTemplateRepository()
		s.Employees = memory.NewEmployeeRepository()
		s.Instances = memory.NewInstanceRepository()
		s.Attempts = memory.NewAttemptRepository()
	}

	var store queue.JobStore
	switch cfg.QueueBackend {
	case config.BackendPostgres:
		store = postgres.NewJobStore(pool)
	case config.BackendRedis:
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return s, fmt.Errorf("redis: %w", err)
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.Pingers["redis"] = health.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.Info("redis connected", "prefix", cfg.RedisKeyPrefix)
		store = redis.NewJobStore(client, cfg.RedisKeyPrefix)
	default:
		store = queue.NewMemoryStore()
	}

	s.Queue = queue.New(store, QueueConfig(cfg))
	logger.Info("stores ready", "storage", cfg.Storage, "queue", cfg.QueueBackend)
	return s, nil
}

func QueueConfig(cfg *config.Config) queue.Config {
	return queue.Config{
		MaxAttempts: cfg.MaxAttempts,
		Backoff: queue.Backoff{
			Base:       time.Duration(cfg.BackoffBaseSec) * time.Second,
			Multiplier: cfg.BackoffMultiplier,
			Max:        time.Duration(cfg.BackoffMaxSec) * time.Second,
			Jitter:     cfg.BackoffJitter,
		},
		Location: cfg.Location(),
	}
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
