package bgremoval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Transfer defaults, matching the result-fetch policy of the pipeline.
const (
	defaultDownloadAttempts = 3
	defaultDownloadDelay    = 2 * time.Second
)

// Transferrer fetches result bytes from the inference provider's delivery
// URL with bounded retry. Provider delivery URLs expire and intermittently
// 404 right after completion, so a failed attempt is retried after a fixed
// delay.
type Transferrer struct {
	httpClient  *http.Client
	maxAttempts int
	delay       time.Duration
	logger      *slog.Logger
}

// NewTransferrer creates a Transferrer with the default retry policy.
func NewTransferrer(logger *slog.Logger) *Transferrer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transferrer{
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		maxAttempts: defaultDownloadAttempts,
		delay:       defaultDownloadDelay,
		logger:      logger,
	}
}

// SetHTTPClient replaces the HTTP client. Used by tests.
func (t *Transferrer) SetHTTPClient(c *http.Client) {
	t.httpClient = c
}

// SetRetryPolicy overrides the attempt budget and inter-attempt delay.
func (t *Transferrer) SetRetryPolicy(maxAttempts int, delay time.Duration) {
	if maxAttempts > 0 {
		t.maxAttempts = maxAttempts
	}
	if delay >= 0 {
		t.delay = delay
	}
}

// DownloadWithRetry fetches the bytes at url. An attempt fails when the
// request errors or the response status is outside the 2xx range; failures
// are logged and retried after the fixed delay. After the last attempt
// fails, the returned error wraps ErrDownloadExhausted and the last
// underlying error.
func (t *Transferrer) DownloadWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("download: context cancelled: %w", ctx.Err())
			case <-time.After(t.delay):
			}
		}

		data, err := t.download(ctx, url)
		if err == nil {
			t.logger.Debug("result downloaded",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.Int("bytes", len(data)),
			)
			return data, nil
		}

		lastErr = err
		t.logger.Warn("download attempt failed",
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", t.maxAttempts),
			slog.String("error", err.Error()),
		)
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrDownloadExhausted, t.maxAttempts, lastErr)
}

// download performs a single fetch attempt.
func (t *Transferrer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read download body: %w", err)
	}

	return data, nil
}
