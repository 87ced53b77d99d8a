// Package webhook implements an HTTP webhook notifier
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/tradecost/internal/notifier"
)

// Webhook posts run summaries as JSON
type Webhook struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

// Compile-time interface check.
var _ notifier.Notifier = (*Webhook)(nil)

// New creates a new Webhook notifier. An empty name defaults to "webhook".
func New(name, url string, headers map[string]string) *Webhook {
	if name == "" {
		name = "webhook"
	}
	return &Webhook{
		name:    name,
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FromConfig builds a Webhook, requiring a URL
func FromConfig(cfg notifier.Config) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}
	return New(cfg.Name, cfg.URL, cfg.Headers), nil
}

func (w *Webhook) Name() string { return w.name }

func (w *Webhook) Notify(ctx context.Context, s notifier.Summary) error {
	return w.post(ctx, map[string]any{
		"type":    "heatmap.completed",
		"summary": s,
	})
}

func (w *Webhook) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode)
	}

	return nil
}
