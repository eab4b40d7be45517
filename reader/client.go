package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"fundingflow/config"
	"fundingflow/logger"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Client wraps an http.Client with the retry and rate limit policy shared by
// the plain-HTTP venue adapters.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	retry   config.RetryConfig
	log     *logger.Log
}

// NewClient builds a Client from the reader configuration. A zero rate limit
// disables client-side throttling.
func NewClient(cfg config.ReaderConfig) *Client {
	httpClient := &http.Client{
		Transport: userAgentTransport{agent: defaultUserAgent, base: http.DefaultTransport},
		Timeout:   cfg.Timeout,
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		burst := cfg.RateLimit.BurstSize
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), burst)
	}

	return &Client{
		http:    httpClient,
		limiter: limiter,
		retry:   cfg.Retry,
		log:     logger.GetLogger(),
	}
}

// GetJSON fetches url and decodes the response body into out. Transient
// failures (network errors, 429 and 5xx statuses) are retried with
// exponential backoff up to the configured attempt count; other statuses
// fail immediately.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	attempts := c.retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	delay := c.retry.BaseDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= time.Duration(max(c.retry.BackoffMultiplier, 2))
			if c.retry.MaxDelay > 0 && delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		retryable, err := c.getOnce(ctx, url, headers, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
		c.log.WithComponent("reader").WithError(err).WithFields(logger.Fields{
			"url":     url,
			"attempt": attempt,
		}).Warn("request failed, will retry")
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

func (c *Client) getOnce(ctx context.Context, url string, headers map[string]string, out any) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retryable, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response from %s: %w", url, err)
	}
	return false, nil
}
