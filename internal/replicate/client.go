package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Static errors for Replicate client operations.
var (
	// ErrModelVersionRequired is returned when the model version is not provided.
	ErrModelVersionRequired = errors.New("replicate: model version is required")
	// ErrTokenNotSet is returned when the API token is not provided.
	ErrTokenNotSet = errors.New("replicate: REPLICATE_API_TOKEN environment variable is not set")
	// ErrPredictionIDRequired is returned when the prediction ID is not provided.
	ErrPredictionIDRequired = errors.New("replicate: prediction ID is required")
	// ErrNoPredictionID is returned when the create response contains no prediction ID.
	ErrNoPredictionID = errors.New("replicate: submit failed: no prediction ID returned")
	// ErrSubmitFailed is returned when the submit operation fails.
	ErrSubmitFailed = errors.New("replicate: submit failed")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("replicate: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("replicate: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("replicate: request failed")
)

// Client defines the interface for interacting with the Replicate API.
type Client interface {
	// Submit creates a background-removal prediction for the given source
	// video URL and returns the prediction ID.
	Submit(ctx context.Context, sourceURL string) (predictionID string, err error)

	// Poll checks the status of a prediction and returns the result.
	Poll(ctx context.Context, predictionID string) (PollResult, error)
}

// HTTPClient is the HTTP implementation of the Replicate Client interface.
type HTTPClient struct {
	token        string
	modelVersion string
	baseURL      string
	httpClient   *http.Client
	maxRetries   int
	baseBackoff  time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithToken sets the API token for authentication.
func WithToken(token string) ClientOption {
	return func(hc *HTTPClient) {
		hc.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL for the Replicate API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new Replicate HTTP client.
// The token can be set via the WithToken option. If not provided,
// it is read from the environment variable REPLICATE_API_TOKEN.
// The model version must be provided.
func NewClient(modelVersion string, opts ...ClientOption) (*HTTPClient, error) {
	if modelVersion == "" {
		return nil, ErrModelVersionRequired
	}

	c := &HTTPClient{
		modelVersion: modelVersion,
		baseURL:      "https://api.replicate.com/v1",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		maxRetries:   3,
		baseBackoff:  1 * time.Second,
	}

	// Apply options first to allow WithToken to set the token
	for _, opt := range opts {
		opt(c)
	}

	// If token was not set via option, try environment variable
	if c.token == "" {
		c.token = os.Getenv("REPLICATE_API_TOKEN")
	}

	if c.token == "" {
		return nil, ErrTokenNotSet
	}

	return c, nil
}

// Submit creates a prediction for the given source video URL.
func (c *HTTPClient) Submit(ctx context.Context, sourceURL string) (string, error) {
	reqBody := predictionRequest{
		Version: c.modelVersion,
		Input: predictionInput{
			InputVideo: sourceURL,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("replicate: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/predictions", c.baseURL)

	var resp predictionResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, url, bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.ID == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrSubmitFailed, resp.Error)
		}
		return "", ErrNoPredictionID
	}

	return resp.ID, nil
}

// Poll checks the status of a prediction and returns the result.
func (c *HTTPClient) Poll(ctx context.Context, predictionID string) (PollResult, error) {
	if predictionID == "" {
		return PollResult{}, ErrPredictionIDRequired
	}

	url := fmt.Sprintf("%s/predictions/%s", c.baseURL, predictionID)

	var resp predictionResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return PollResult{}, err
	}

	result := PollResult{
		Status: Status(resp.Status),
	}

	switch result.Status {
	case StatusSucceeded:
		result.Output = resp.Output
	case StatusFailed, StatusCanceled:
		result.Error = resp.Error
	}

	return result, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("replicate: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := c.doRequest(ctx, method, url, body, result)
		if err == nil {
			return nil
		}

		// Check if error is retryable
		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("replicate: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("replicate: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("replicate: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("replicate: read response: %w", err)}
	}

	// Handle non-2xx status codes
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 5xx errors are retryable
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		// 429 (rate limit) is retryable
		if resp.StatusCode == 429 {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		// Other errors are not retryable
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("replicate: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
