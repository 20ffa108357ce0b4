// Package webhook posts degradation notices to an operator-configured URL.
// It is the operational side channel for "this symbol is being served
// synthetic data"; the UI flag on the series itself is separate.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/qaliblog/tradology/utilities"
)

type Client struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

type payload struct {
	Event     string    `json:"event"`
	Symbol    string    `json:"symbol"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewClient returns nil when no webhook URL is configured; a nil *Client is
// safe to pass around as a disabled notifier.
func NewClient(cfg utilities.NotificationsConfig, logger zerolog.Logger) *Client {
	if cfg.WebhookURL == "" {
		return nil
	}
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:        cfg.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "webhook").Logger(),
	}
}

// NotifyDegraded implements pipeline.Notifier. Delivery is best effort; a
// failed post is logged and dropped, never surfaced to the data path.
func (c *Client) NotifyDegraded(ctx context.Context, symbol, reason string) {
	if c == nil {
		return
	}
	body, err := json.Marshal(payload{
		Event:     "data_degraded",
		Symbol:    symbol,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("marshal webhook payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.logger.Error().Err(err).Msg("build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Str("symbol", symbol).Str("status", fmt.Sprintf("%d", resp.StatusCode)).Msg("webhook rejected")
	}
}
