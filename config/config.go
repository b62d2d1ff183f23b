package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	ctxlog "github.com/ErlanBelekov/journey-engine/internal/log"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Env         string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port        string `env:"PORT" envDefault:"8080" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	LogLevel          string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFile           string `env:"LOG_FILE"`
	LogFileMaxMB      int    `env:"LOG_FILE_MAX_MB" envDefault:"100" validate:"min=1"`
	LogFileMaxBackups int    `env:"LOG_FILE_MAX_BACKUPS" envDefault:"5" validate:"min=0"`

	Storage        string `env:"STORAGE" envDefault:"memory" validate:"oneof=memory postgres"`
	QueueBackend   string `env:"QUEUE_BACKEND" validate:"omitempty,oneof=memory postgres redis"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisURL       string `env:"REDIS_URL" validate:"required_if=QueueBackend redis"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"journeys" validate:"required"`

	WorkerCount          int  `env:"WORKER_COUNT" envDefault:"5" validate:"min=1,max=100"`
	PollIntervalMS       int  `env:"POLL_INTERVAL_MS" envDefault:"500" validate:"min=50,max=60000"`
	DispatchTimeoutSec   int  `env:"DISPATCH_TIMEOUT_SEC" envDefault:"30" validate:"min=1,max=600"`
	HeartbeatIntervalSec int  `env:"HEARTBEAT_INTERVAL_SEC" envDefault:"10" validate:"min=1"`
	StaleAfterSec        int  `env:"STALE_AFTER_SEC" envDefault:"30" validate:"gtfield=HeartbeatIntervalSec"`
	ReaperIntervalSec    int  `env:"REAPER_INTERVAL_SEC" envDefault:"30" validate:"min=1"`
	RecoveryIntervalSec  int  `env:"RECOVERY_INTERVAL_SEC" envDefault:"60" validate:"min=1"`
	RunProcessor         bool `env:"RUN_PROCESSOR" envDefault:"true"`

	MaxAttempts       int     `env:"MAX_ATTEMPTS" envDefault:"3" validate:"min=1,max=50"`
	BackoffBaseSec    int     `env:"BACKOFF_BASE_SEC" envDefault:"30" validate:"min=1"`
	BackoffMultiplier float64 `env:"BACKOFF_MULTIPLIER" envDefault:"2" validate:"gte=1"`
	BackoffMaxSec     int     `env:"BACKOFF_MAX_SEC" envDefault:"3600" validate:"gtefield=BackoffBaseSec"`
	BackoffJitter     float64 `env:"BACKOFF_JITTER" envDefault:"0.2" validate:"gte=0,lt=1"`
	Timezone          string  `env:"TIMEZONE" envDefault:"UTC" validate:"timezone"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`

	ResendAPIKey    string  `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom      string  `env:"RESEND_FROM" validate:"required_if=Env production,required_if=Env staging"`
	EmailRatePerSec float64 `env:"EMAIL_RATE_PER_SEC" envDefault:"2" validate:"gte=0"`

	ChatProvider     string  `env:"CHAT_PROVIDER" envDefault:"log" validate:"oneof=log whatsapp telegram"`
	WhatsAppAPIURL   string  `env:"WHATSAPP_API_URL" validate:"required_if=ChatProvider whatsapp"`
	WhatsAppAPIKey   string  `env:"WHATSAPP_API_KEY"`
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN" validate:"required_if=ChatProvider telegram"`
	ChatRatePerSec   float64 `env:"CHAT_RATE_PER_SEC" envDefault:"10" validate:"gte=0"`

	ExternalAPIKey string `env:"EXTERNAL_API_KEY"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.QueueBackend == "" {
		cfg.QueueBackend = cfg.Storage
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.UsesPostgres() && c.DatabaseURL == "" {
		return errors.New("invalid config: DATABASE_URL is required when STORAGE or QUEUE_BACKEND is postgres")
	}
	return nil
}

func (c *Config) UsesPostgres() bool {
	return c.Storage == BackendPostgres || c.QueueBackend == BackendPostgres
}

func (c *Config) SlogLevel() slog.Level { return ctxlog.ParseLevel(c.LogLevel) }

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutSec) * time.Second
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSec) * time.Second
}

func (c *Config) ReaperInterval() time.Duration {
	return time.Duration(c.ReaperIntervalSec) * time.Second
}

func (c *Config) RecoveryInterval() time.Duration {
	return time.Duration(c.RecoveryIntervalSec) * time.Second
}
