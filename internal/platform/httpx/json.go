package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPError is a non-2xx response from an upstream JSON API.
type HTTPError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("%s http %d: %s", e.Service, e.StatusCode, body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// JSONClient posts JSON bodies and decodes JSON replies with bounded retries.
type JSONClient struct {
	Service    string
	BaseURL    string
	Headers    map[string]string
	HTTPClient *http.Client
	MaxRetries int
	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, sleep time.Duration, err error)
}

func (c *JSONClient) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{Service: c.Service, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// Do sends body and decodes the reply into out (when non-nil).
func (c *JSONClient) Do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 250 * time.Millisecond
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("%s decode error: %w", c.Service, uErr)
			}
			return nil
		}
		if !IsRetryableError(err) || attempt == c.MaxRetries {
			return err
		}
		sleepFor := JitterSleep(RetryAfterDuration(resp, backoff, 5*time.Second))
		if c.OnRetry != nil {
			c.OnRetry(attempt+1, sleepFor, err)
		}
		if sErr := Sleep(ctx, sleepFor); sErr != nil {
			return sErr
		}
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}
