package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ErlanBelekov/journey-engine/internal/channel"
)

// WhatsAppSender posts text messages to a WhatsApp Cloud API compatible
// endpoint.
type WhatsAppSender struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewWhatsAppSender(baseURL, apiKey string, client *http.Client) *WhatsAppSender {
	return &WhatsAppSender{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

func (s *WhatsAppSender) SendMessage(ctx context.Context, to, message string) error {
	if !strings.HasPrefix(to, "+") {
		return channel.Permanent(fmt.Errorf("whatsapp recipient %q is not a phone number", to))
	}
	payload, err := json.Marshal(whatsAppMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             whatsAppText{Body: message},
	})
	if err != nil {
		return channel.Permanent(fmt.Errorf("encode whatsapp message: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return channel.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send whatsapp message: unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
