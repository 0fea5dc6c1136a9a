package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// APIError represents an error from the upstream source.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
	Throttled  bool // in-band rate-limit note on a 200 response
}

func (e *APIError) Error() string {
	if e.Throttled {
		return fmt.Sprintf("source throttled: %s", e.Message)
	}
	return fmt.Sprintf("source api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.Throttled || e.StatusCode >= 500 || e.StatusCode == 429
}

// IsFatal reports whether err is a non-retryable upstream failure: an auth
// failure or an unknown key. Fatal errors are recorded per key and never
// retried.
func IsFatal(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return !apiErr.IsRetryable()
}

// doRequest performs an HTTP GET against the query endpoint. The API key is
// carried in the query string per the upstream contract.
func (c *Client) doRequest(ctx context.Context, query url.Values) ([]byte, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	fullURL := c.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	if err := checkEnvelope(body); err != nil {
		return nil, err
	}

	return body, nil
}

// envelope holds the in-band error fields the upstream attaches to 200
// responses: "Error Message" for bad symbols/functions, "Note"/"Information"
// for rate-limit rejections.
type envelope struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func checkEnvelope(body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Not an object envelope; let the caller's unmarshal report it.
		return nil
	}

	if env.ErrorMessage != "" {
		return &APIError{
			StatusCode: http.StatusBadRequest,
			Message:    env.ErrorMessage,
			Body:       body,
		}
	}
	if env.Note != "" || env.Information != "" {
		msg := env.Note
		if msg == "" {
			msg = env.Information
		}
		return &APIError{
			StatusCode: http.StatusOK,
			Message:    msg,
			Body:       body,
			Throttled:  true,
		}
	}
	return nil
}

// doWithRetry performs a request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, query url.Values) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)))
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"function", query.Get("function"),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, query)
		if err == nil {
			return body, nil
		}

		lastErr = err

		if !c.shouldRetry(ctx, err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// shouldRetry classifies an error for the retry loop. Upstream errors follow
// APIError.IsRetryable; transport-level failures (connection drops, client
// timeouts) are transient, unless the caller's context itself is done.
func (c *Client) shouldRetry(ctx context.Context, err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	if ctx.Err() != nil {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// get performs a GET request with retries and unmarshals the response.
func (c *Client) get(ctx context.Context, query url.Values, result any) error {
	body, err := c.doWithRetry(ctx, query)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
