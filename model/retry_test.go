package model

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hupe1980/modelbridge/logging"
	"github.com/stretchr/testify/assert"
)

func fastPolicy(maxRetries uint64) RetryPolicy {
	return RetryPolicy{
		MaxRetries:          maxRetries,
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		Multiplier:          2.0,
		RandomizationFactor: 0,
	}
}

func neverTransient(error) bool { return false }

// -------------------- RetryTransient Tests --------------------

func TestRetryTransient_FirstAttemptSucceeds(t *testing.T) {
	calls := 0

	res, err := RetryTransient(context.Background(), fastPolicy(3), logging.NoOpLogger{},
		func(error) bool { return true },
		func() (string, error) {
			calls++
			return "ok", nil
		})

	assert.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 1, calls)
}

func TestRetryTransient_RecoversAfterTransientFailures(t *testing.T) {
	calls := 0

	res, err := RetryTransient(context.Background(), fastPolicy(3), logging.NoOpLogger{},
		func(error) bool { return true },
		func() (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("flaky")
			}
			return "ok", nil
		})

	assert.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 3, calls)
}

func TestRetryTransient_PermanentFailsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("fatal")

	_, err := RetryTransient(context.Background(), fastPolicy(5), logging.NoOpLogger{},
		neverTransient,
		func() (int, error) {
			calls++
			return 0, boom
		})

	// Propagates unmodified, with a single attempt and no wrapping.
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)

	var exhausted *RetryExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestRetryTransient_ExhaustsBudget(t *testing.T) {
	logger := &logging.MemoryLogger{}
	calls := 0

	_, err := RetryTransient(context.Background(), fastPolicy(2), logger,
		func(error) bool { return true },
		func() (int, error) {
			calls++
			return 0, fmt.Errorf("transient %d", calls)
		})

	assert.Equal(t, 3, calls) // first attempt + 2 retries

	var exhausted *RetryExhaustedError
	assert.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Contains(t, exhausted.Err.Error(), "transient 3")

	retryLogs := 0
	for _, e := range logger.Entries() {
		if e.Msg == "Retrying transient failure" {
			retryLogs++
		}
	}
	assert.Equal(t, 2, retryLogs)
}

func TestRetryTransient_ZeroRetries(t *testing.T) {
	calls := 0

	_, err := RetryTransient(context.Background(), fastPolicy(0), logging.NoOpLogger{},
		func(error) bool { return true },
		func() (int, error) {
			calls++
			return 0, errors.New("flaky")
		})

	assert.Equal(t, 1, calls)

	var exhausted *RetryExhaustedError
	assert.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 1, exhausted.Attempts)
}

func TestRetryTransient_CanceledContextStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	start := time.Now()
	_, err := RetryTransient(ctx, RetryPolicy{
		MaxRetries:      5,
		InitialInterval: time.Hour,
		MaxInterval:     time.Hour,
		Multiplier:      2.0,
	}, logging.NoOpLogger{},
		func(error) bool { return true },
		func() (int, error) {
			calls++
			cancel()
			return 0, errors.New("flaky")
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}
