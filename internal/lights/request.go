package lights

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
)

// Rainbow holds the strip parameters sent with each request.
type Rainbow struct {
	Amount     int    // Number of LEDs
	Brightness int    // 0-255
	Speed      int    // Animation speed
	Key        string // Device key, usually the connection id
}

// StatusError is a non-2xx response from the endpoint.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lights: unexpected status %d: %s", e.StatusCode, e.Status)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// StartRainbow turns the rainbow animation on.
func (c *Client) StartRainbow(ctx context.Context, r Rainbow) error {
	query := url.Values{}
	query.Set("leds", strconv.Itoa(r.Amount))
	query.Set("brightness", strconv.Itoa(r.Brightness))
	query.Set("speed", strconv.Itoa(r.Speed))
	query.Set("key", r.Key)

	if err := c.doWithRetry(ctx, http.MethodPost, c.startPath, query); err != nil {
		return fmt.Errorf("start rainbow: %w", err)
	}
	return nil
}

// StopRainbow turns the rainbow animation off.
func (c *Client) StopRainbow(ctx context.Context, r Rainbow) error {
	query := url.Values{}
	query.Set("leds", strconv.Itoa(r.Amount))
	query.Set("key", r.Key)

	if err := c.doWithRetry(ctx, http.MethodPost, c.stopPath, query); err != nil {
		return fmt.Errorf("stop rainbow: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request with the given method and path.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}

// maxRetryDelay caps the wait between attempts.
const maxRetryDelay = 30 * time.Second

// newBackoff returns the retry delay sequence: retryBackoff doubling per
// attempt, jittered, capped at maxRetryDelay.
func (c *Client) newBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    c.retryBackoff,
		Max:    maxRetryDelay,
		Factor: 2,
		Jitter: true,
	}
}

// doWithRetry performs a request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values) error {
	var lastErr error
	b := c.newBackoff()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := b.Duration()
			c.logger.Debug().
				Int("attempt", attempt).
				Dur("backoff", delay).
				Str("path", path).
				Msg("retrying request")

			wait := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				wait.Stop()
				return ctx.Err()
			case <-wait.C:
			}
		}

		err := c.doRequest(ctx, method, path, query)
		if err == nil {
			return nil
		}

		lastErr = err

		var statusErr *StatusError
		if !errors.As(err, &statusErr) || !statusErr.IsRetryable() {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
