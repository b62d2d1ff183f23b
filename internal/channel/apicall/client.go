// Package apicall performs the outbound HTTP calls of api actions.
package apicall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ErlanBelekov/journey-engine/internal/channel"
	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/requestid"
)

type Client struct {
	client *http.Client
	apiKey string
}

// NewClient returns a caller that adds "Authorization: Bearer apiKey" to
// requests that carry no Authorization header of their own. The caller's
// context bounds each request, so httpClient needs no global timeout.
func NewClient(httpClient *http.Client, apiKey string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{client: httpClient, apiKey: apiKey}
}

func (c *Client) Call(ctx context.Context, cfg domain.APIConfig) (int, error) {
	var bodyReader io.Reader
	if cfg.Body != nil {
		payload, err := json.Marshal(cfg.Body)
		if err != nil {
			return 0, channel.Permanent(fmt.Errorf("encode body: %w", err))
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bodyReader)
	if err != nil {
		return 0, channel.Permanent(fmt.Errorf("build request: %w", err))
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if id := requestid.FromContext(ctx); id != "" && req.Header.Get(requestid.Header) == "" {
		req.Header.Set(requestid.Header, id)
	}
	if c.apiKey != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused by the pool

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
