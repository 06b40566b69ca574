package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig bounds the retry loop around individual model calls.
type RetryConfig struct {
	MaxRetries      int           // retry attempts after the first call
	InitialInterval time.Duration // first backoff delay
	MaxInterval     time.Duration // backoff cap
}

// DefaultRetryConfig returns the defaults applied when the zero value is
// supplied.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups transient error substrings, matched
// case-insensitively against err.Error(). String matching because neither
// Genkit nor the provider SDK exposes typed errors for these failures.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},
	{"500", "502", "503", "504", "unavailable"},
	{"connection reset", "timeout", "temporary"},
}

// retryableError reports whether err looks transient.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, group := range retryablePatterns {
		if containsAny(msg, group...) {
			return true
		}
	}
	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// completeWithRetry runs one model call with rate limiting and exponential
// backoff. Every attempt waits on the limiter first, so retries also count
// against the quota budget.
func (p *Pipeline) completeWithRetry(ctx context.Context, model Completer, prompt string) (string, error) {
	var lastErr error
	delay := p.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= p.retry.MaxRetries; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		out, err := model.Complete(ctx, prompt)
		if err == nil {
			p.logger.Debug("model call completed",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return out, nil
		}

		lastErr = err

		// Non-retryable errors fail immediately.
		if !retryableError(err) {
			return "", err
		}
		if attempt == p.retry.MaxRetries {
			break
		}

		p.logger.Debug("retrying model call",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, p.retry.MaxInterval)
		}
	}

	return "", fmt.Errorf("model call after %d retries (elapsed: %v): %w",
		p.retry.MaxRetries, time.Since(start), lastErr)
}
