package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/journey-engine/config"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage != config.BackendMemory || cfg.QueueBackend != config.BackendMemory {
		t.Fatalf("expected memory backends, got %s/%s", cfg.Storage, cfg.QueueBackend)
	}
	if cfg.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.PollInterval() != 500*time.Millisecond {
		t.Fatalf("unexpected poll interval %s", cfg.PollInterval())
	}
	if cfg.RecoveryInterval() != time.Minute {
		t.Fatalf("unexpected recovery interval %s", cfg.RecoveryInterval())
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC, got %s", cfg.Location())
	}
	if !cfg.RunProcessor {
		t.Fatal("expected the embedded processor to be on by default")
	}
}

func TestLoad_QueueBackendFollowsStorage(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/journeys")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.QueueBackend != config.BackendPostgres {
		t.Fatalf("expected postgres queue, got %s", cfg.QueueBackend)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"short secret", map[string]string{"JWT_SECRET": "short"}, "JWTSecret"},
		{"postgres without url", map[string]string{"QUEUE_BACKEND": "postgres"}, "DATABASE_URL"},
		{"redis without url", map[string]string{"QUEUE_BACKEND": "redis"}, "RedisURL"},
		{"unknown storage", map[string]string{"STORAGE": "mongo"}, "Storage"},
		{"stale before heartbeat", map[string]string{"STALE_AFTER_SEC": "5"}, "StaleAfterSec"},
		{"telegram without token", map[string]string{"CHAT_PROVIDER": "telegram"}, "TelegramBotToken"},
		{"production without resend", map[string]string{"ENV": "production"}, "ResendAPIKey"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", secret)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
