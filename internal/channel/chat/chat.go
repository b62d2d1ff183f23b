// Package chat delivers chat message actions through the configured
// provider.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	ProviderLog      = "log"
	ProviderWhatsApp = "whatsapp"
	ProviderTelegram = "telegram"
)

type Sender interface {
	SendMessage(ctx context.Context, to, message string) error
}

type Config struct {
	Provider       string
	WhatsAppURL    string
	WhatsAppAPIKey string
	TelegramToken  string
}

// LogSender logs messages instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "chat")}
}

func (s *LogSender) SendMessage(_ context.Context, to, message string) error {
	s.logger.Info("journey chat message (local dev)", "to", to, "message", message)
	return nil
}

// NewSender builds the sender for cfg.Provider.
func NewSender(cfg Config, logger *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "", ProviderLog:
		return NewLogSender(logger), nil
	case ProviderWhatsApp:
		return NewWhatsAppSender(cfg.WhatsAppURL, cfg.WhatsAppAPIKey, &http.Client{Timeout: 30 * time.Second}), nil
	case ProviderTelegram:
		return NewTelegramSender(cfg.TelegramToken)
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Provider)
	}
}
