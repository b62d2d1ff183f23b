package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/ErlanBelekov/journey-engine/internal/channel"
)

// TelegramSender posts messages through the Telegram Bot API. Only @handle
// recipients can be addressed; Telegram has no phone number lookup.
type TelegramSender struct {
	bot *bot.Bot
}

// NewTelegramSender creates the bot client, which verifies the token with
// Telegram before returning.
func NewTelegramSender(token string) (*TelegramSender, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSender{bot: b}, nil
}

func (s *TelegramSender) SendMessage(ctx context.Context, to, message string) error {
	if !strings.HasPrefix(to, "@") {
		return channel.Permanent(fmt.Errorf("telegram recipient %q is not an @handle", to))
	}
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: to,
		Text:   message,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
