package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookNotifier posts the summary text to a chat webhook. The payload is
// the Discord-compatible {"content": "..."} document, which Slack-style
// relays also accept.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// webhookPayload is the wire form expected by chat webhook endpoints.
type webhookPayload struct {
	Content string `json:"content"`
}

// NewWebhook builds a WebhookNotifier for the given endpoint. A zero
// timeout falls back to 10s.
func NewWebhook(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Notify posts the rendered summary. Any non-2xx response is an error.
func (n *WebhookNotifier) Notify(ctx context.Context, s Summary) error {
	body, err := json.Marshal(webhookPayload{Content: s.Message()})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (n *WebhookNotifier) Close() error {
	n.client.CloseIdleConnections()
	return nil
}
