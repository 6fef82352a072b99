package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ReadinessChecker blocks until a backend is ready to accept requests, or
// fails with an error once its deadline is exceeded.
type ReadinessChecker interface {
	WaitReady(ctx context.Context, baseURL string) error
}

// HTTPReadinessChecker polls a backend's /health endpoint with exponential
// backoff until it responds with HTTP 200. It replaces the fixed inter-launch
// sleep: the second backend starts as soon as the first reports ready,
// instead of after an arbitrary delay.
type HTTPReadinessChecker struct {
	client          *http.Client
	initialInterval time.Duration
	maxInterval     time.Duration
	deadline        time.Duration
}

// NewHTTPReadinessChecker creates a checker that polls starting at
// initialInterval, doubling up to maxInterval, and gives up after deadline.
func NewHTTPReadinessChecker(initialInterval, deadline time.Duration) *HTTPReadinessChecker {
	if initialInterval <= 0 {
		initialInterval = 100 * time.Millisecond
	}
	return &HTTPReadinessChecker{
		client:          &http.Client{Timeout: 2 * time.Second},
		initialInterval: initialInterval,
		maxInterval:     2 * time.Second,
		deadline:        deadline,
	}
}

// WaitReady polls GET <baseURL>/health until it returns 200.
func (c *HTTPReadinessChecker) WaitReady(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	url := baseURL + "/health"
	interval := c.initialInterval
	var lastErr error

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create readiness request for %s: %w", url, err)
		}
		resp, err := c.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("readiness probe at %s returned status %s", url, resp.Status)
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("backend at %s never became ready within %s: %w", baseURL, c.deadline, lastErr)
		case <-time.After(interval):
		}

		interval *= 2
		if interval > c.maxInterval {
			interval = c.maxInterval
		}
	}
}

// FixedDelayChecker sleeps for a constant duration instead of probing. It is
// the baseline behavior, kept for configurations where the backend exposes no
// health endpoint.
type FixedDelayChecker struct {
	Delay time.Duration
}

// WaitReady sleeps for the configured delay or until ctx is cancelled.
func (c *FixedDelayChecker) WaitReady(ctx context.Context, baseURL string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.Delay):
		return nil
	}
}
