package model

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hupe1980/modelbridge/logging"
)

// RetryPolicy bounds the exponential backoff applied to transient failures.
// MaxRetries counts retries after the first attempt, so an operation runs at
// most MaxRetries+1 times.
type RetryPolicy struct {
	MaxRetries          uint64
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryPolicy returns the standard policy: a quick first retry, waits
// doubling with jitter, capped at one minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:          6,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// RetryTransient runs op, retrying when transient(err) reports the failure as
// retryable. Non-transient errors propagate unmodified with no delay. When
// the retry budget runs out, the last transient error is wrapped in a
// *RetryExhaustedError. Waits block only the calling goroutine and end early
// when ctx is done.
func RetryTransient[T any](
	ctx context.Context,
	policy RetryPolicy,
	logger logging.Logger,
	transient func(error) bool,
	op func() (T, error),
) (T, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.InitialInterval
	expo.MaxInterval = policy.MaxInterval
	expo.Multiplier = policy.Multiplier
	expo.RandomizationFactor = policy.RandomizationFactor
	expo.MaxElapsedTime = 0 // bounded by retry count, not wall time

	attempts := 0
	wrapped := func() (T, error) {
		attempts++
		res, err := op()
		if err != nil && !transient(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		logger.Info("Retrying transient failure", "attempt", attempts, "wait", wait, "error", err)
	}

	res, err := backoff.RetryNotifyWithData(
		wrapped,
		backoff.WithContext(backoff.WithMaxRetries(expo, policy.MaxRetries), ctx),
		notify,
	)
	if err == nil {
		return res, nil
	}

	// The budget is exhausted when the final attempt ran and still failed
	// transiently; context errors and permanent failures pass through.
	if transient(err) && attempts == int(policy.MaxRetries)+1 {
		return res, &RetryExhaustedError{Attempts: attempts, Err: err}
	}

	return res, err
}
