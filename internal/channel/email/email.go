// Package email delivers email actions through Resend, or to the log in
// local development.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"github.com/ErlanBelekov/journey-engine/internal/channel"
)

var errNoRecipient = errors.New("email has no recipient")

// LogSender writes each email to the log and reports success.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "email")}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return channel.Permanent(errNoRecipient)
	}
	s.logger.InfoContext(ctx, "journey email (local dev)", "to", to, "subject", subject, "body_bytes", len(body))
	return nil
}

// ResendSender posts emails to the Resend API. The body is sent as HTML.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(client *resend.Client, from string) *ResendSender {
	return &ResendSender{client: client, from: from}
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return channel.Permanent(errNoRecipient)
	}
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// NewSender picks the log sender for ENV=local and Resend everywhere else.
func NewSender(env, apiKey, from string, logger *slog.Logger) channel.EmailSender {
	if env == "local" {
		return NewLogSender(logger)
	}
	return NewResendSender(resend.NewClient(apiKey), from)
}
