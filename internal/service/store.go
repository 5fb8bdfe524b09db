package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	appErrors "github.com/noah-isme/lms-points-api/pkg/errors"
)

// ReadPolicy bounds how often an idempotent read is retried on store failure.
type ReadPolicy struct {
	Retries int
	Delay   time.Duration
}

// DefaultReadPolicy retries a read up to three times starting at 50ms.
func DefaultReadPolicy() ReadPolicy {
	return ReadPolicy{Retries: 3, Delay: 50 * time.Millisecond}
}

func (p ReadPolicy) backoff() retry.Backoff {
	delay := p.Delay
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	b := retry.NewExponential(delay)
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(uint64(retries), b)
}

// readWithRetry runs fn until it succeeds, fails permanently or the policy is
// exhausted. Missing rows, domain errors and cancellation are never retried.
// Only idempotent reads may go through here.
func readWithRetry[T any](ctx context.Context, policy ReadPolicy, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		value, err := fn(ctx)
		if err == nil {
			result = value
			return nil
		}
		if isPermanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	return result, err
}

func isPermanent(err error) bool {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var appErr *appErrors.Error
	return errors.As(err, &appErr)
}

// lookupError converts a repository read failure into an API error.
func lookupError(err error, notFound string, failure string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Unavailable(err, failure)
}
