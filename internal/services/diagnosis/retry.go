// File: internal/services/diagnosis/retry.go
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffDelay is the wait after the given 1-based attempt: 2s, 4s, 8s, ...
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// retryPolicy runs an upstream call with per-attempt timeouts and exponential backoff.
type retryPolicy struct {
	provider   string
	maxRetries int
	timeout    time.Duration
	limiter    *rate.Limiter
	sleep      SleepFunc
	logger     Logger
}

func (p retryPolicy) do(ctx context.Context, call func(ctx context.Context) error) error {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					lastErr = ctx.Err()
					break
				}
				// the throttle cannot grant a slot before the caller's deadline
				p.logger.Warn("outbound throttle exhausted", "provider", p.provider, "attempt", attempt, "error", err)
				return NewThrottledError(p.provider, err)
			}
		}

		attempts = attempt
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := call(attemptCtx)
		cancel()
		if err == nil {
			if attempt > 1 {
				p.logger.Info("upstream call succeeded after retry", "provider", p.provider, "attempts", attempt)
			}
			return nil
		}

		if httpStatus(err) == http.StatusTooManyRequests {
			p.logger.Warn("upstream rate limited, not retrying", "provider", p.provider, "attempt", attempt)
			return NewRateLimitedError(p.provider, err)
		}
		if !retryable(err) {
			return err
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < p.maxRetries {
			wait := backoffDelay(attempt)
			p.logger.Warn("upstream call failed, retrying",
				"provider", p.provider, "attempt", attempt, "max_retries", p.maxRetries,
				"backoff", wait.String(), "error", err)
			if sleepErr := p.sleep(ctx, wait); sleepErr != nil {
				lastErr = sleepErr
				break
			}
		}
	}

	p.logger.Error("upstream call failed after all retries", "provider", p.provider, "attempts", attempts, "error", lastErr)
	if errors.Is(lastErr, context.DeadlineExceeded) {
		return NewTimeoutError(p.provider, int(p.timeout/time.Second), lastErr)
	}
	return NewConnectionFailedError(p.provider, fmt.Sprintf("request failed after %d attempt(s)", attempts), lastErr)
}

// retryable reports whether another attempt could help. Structural failures
// (bad payloads, missing credentials, unsupported features) never are.
func retryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case KindInvalidResponse, KindInvalidAPIKey, KindInvalidConfiguration, KindUnsupportedFeature, KindRateLimited:
			return false
		}
	}
	return true
}

// httpStatus extracts the upstream HTTP status from a go-openai error, or 0.
func httpStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
