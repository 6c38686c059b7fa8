// Package pixellab is an HTTP client for the PixelLab generation API. It
// implements the generator interfaces the tileset and region packages
// consume: Wang tileset jobs on the v2 API and one-shot image generation
// and inpainting on the v1 API.
package pixellab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lawnchairsociety/mapforge/internal/config"
	"github.com/lawnchairsociety/mapforge/internal/logger"
)

// Client talks to the PixelLab API.
type Client struct {
	baseURL       string
	apiKey        string
	retryAttempts int
	backoff       time.Duration
	maxBackoff    time.Duration
	client        *http.Client
}

// NewClient creates a client from the api section of the config.
func NewClient(cfg config.APIConfig) *Client {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		retryAttempts: attempts,
		backoff:       cfg.RetryBackoff,
		maxBackoff:    cfg.MaxBackoff,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// backoffFor returns the wait before the given retry (1-based): backoff,
// 2*backoff, 4*backoff, capped at maxBackoff.
func (c *Client) backoffFor(retry int) time.Duration {
	d := c.backoff * time.Duration(1<<uint(retry-1))
	if c.maxBackoff > 0 && d > c.maxBackoff {
		d = c.maxBackoff
	}
	return d
}

// do sends a JSON request and decodes a JSON response into out, retrying
// transport errors, 5xx and 429 with exponential backoff. Other 4xx
// responses fail immediately.
func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if attempt > 1 {
			wait := c.backoffFor(attempt - 1)
			var apiErr *APIError
			if errors.As(lastErr, &apiErr) && apiErr.retryAfter > wait {
				wait = apiErr.retryAfter
			}
			logger.Debug("Retrying PixelLab request", "endpoint", endpoint, "attempt", attempt, "wait", wait, "error", lastErr)
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}

		respBody, err := c.send(ctx, method, endpoint, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
			}
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("pixellab: %s %s failed after %d attempts: %w", method, endpoint, c.retryAttempts, lastErr)
}

func (c *Client) send(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warning("Failed to close PixelLab response body", "error", closeErr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
				apiErr.retryAfter = time.Duration(secs) * time.Second
				if c.maxBackoff > 0 && apiErr.retryAfter > c.maxBackoff {
					apiErr.retryAfter = c.maxBackoff
				}
			}
		}
		return nil, apiErr
	}
	return respBody, nil
}

// Download fetches a file such as a tileset sheet. Absolute URLs are used
// as-is, without the API key; relative ones resolve against the base URL.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	absolute := strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
	if !absolute {
		url = c.baseURL + "/" + strings.TrimLeft(url, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	if !absolute && c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Method: http.MethodGet, Endpoint: url, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download: %w", err)
	}
	return data, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
