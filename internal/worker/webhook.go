package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// WebhookJobHandler POSTs each batch of runs as a JSON array. Failed
// requests are retried with backoff.
type WebhookJobHandler struct {
	client *retryablehttp.Client
	url    string
}

type WebhookOption func(*retryablehttp.Client)

func WithRetryMax(n int) WebhookOption {
	return func(c *retryablehttp.Client) {
		c.RetryMax = n
	}
}

func WithRetryWait(minimum, maximum time.Duration) WebhookOption {
	return func(c *retryablehttp.Client) {
		c.RetryWaitMin = minimum
		c.RetryWaitMax = maximum
	}
}

func NewWebhookJobHandler(url string, opts ...WebhookOption) *WebhookJobHandler {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 10 * time.Second
	client.Backoff = retryablehttp.LinearJitterBackoff
	client.Logger = slogLeveledLogger{slog.Default()}
	client.HTTPClient.Timeout = 10 * time.Second
	for _, opt := range opts {
		opt(client)
	}
	return &WebhookJobHandler{client: client, url: url}
}

func (h *WebhookJobHandler) HandleJobs(ctx context.Context, jobs ...RunDispatch) error {
	if len(jobs) == 0 {
		return nil
	}
	body, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("failed to encode runs: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

var _ JobHandler = (*WebhookJobHandler)(nil)

type slogLeveledLogger struct {
	logger *slog.Logger
}

func (l slogLeveledLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

func (l slogLeveledLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

// Info maps to debug; retryablehttp logs each attempt at info.
func (l slogLeveledLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l slogLeveledLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

var _ retryablehttp.LeveledLogger = slogLeveledLogger{}
