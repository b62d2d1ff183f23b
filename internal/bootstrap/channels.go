package bootstrap

import (
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/journey-engine/config"
	"github.com/ErlanBelekov/journey-engine/internal/channel"
	"github.com/ErlanBelekov/journey-engine/internal/channel/apicall"
	"github.com/ErlanBelekov/journey-engine/internal/channel/chat"
	"github.com/ErlanBelekov/journey-engine/internal/channel/email"
)

// Channels registers one adapter per channel type. Email and chat are
// rate limited per the config; API calls are bounded by the dispatch
// timeout only.
func Channels(cfg *config.Config, logger *slog.Logger) (*channel.Registry, error) {
	emailSender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)

	chatSender, err := chat.NewSender(chat.Config{
		Provider:       cfg.ChatProvider,
		WhatsAppURL:    cfg.WhatsAppAPIURL,
		WhatsAppAPIKey: cfg.WhatsAppAPIKey,
		TelegramToken:  cfg.TelegramBotToken,
	}, logger)
	if err != nil {
		return nil, err
	}

	caller := apicall.NewClient(&http.Client{}, cfg.ExternalAPIKey)

	return channel.NewRegistry(
		channel.RateLimited(channel.Email(emailSender), channel.PerSecond(cfg.EmailRatePerSec)),
		channel.RateLimited(channel.Chat(chatSender), channel.PerSecond(cfg.ChatRatePerSec)),
		channel.API(caller),
	), nil
}
