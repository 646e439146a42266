package migrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/erp/migrator/internal/domain/migration"
)

// recordingSleep collects the requested delays
type recordingSleep struct {
	delays []time.Duration
	err    error
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return r.err
}

func TestRetryPolicy_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		rec := &recordingSleep{}
		policy := RetryPolicy{MaxAttempts: 5, Delay: 10 * time.Second, Sleep: rec.sleep}

		attempts := 0
		err := policy.Do(ctx, "list orders", func(context.Context) error {
			attempts++
			if attempts < 3 {
				return migration.ErrRemoteRateLimited
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, rec.delays)
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		rec := &recordingSleep{}
		policy := RetryPolicy{MaxAttempts: 5, Sleep: rec.sleep}

		attempts := 0
		err := policy.Do(ctx, "list orders", func(context.Context) error {
			attempts++
			return migration.ErrRemoteAuthFailed
		})

		assert.ErrorIs(t, err, migration.ErrRemoteAuthFailed)
		assert.NotErrorIs(t, err, migration.ErrRetriesExhausted)
		assert.Equal(t, 1, attempts)
		assert.Empty(t, rec.delays)
	})

	t.Run("exhausted attempts wrap the last error", func(t *testing.T) {
		rec := &recordingSleep{}
		policy := RetryPolicy{MaxAttempts: 4, Delay: time.Second, Sleep: rec.sleep}

		attempts := 0
		err := policy.Do(ctx, "list orders", func(context.Context) error {
			attempts++
			return migration.ErrRemoteUnavailable
		})

		assert.ErrorIs(t, err, migration.ErrRetriesExhausted)
		assert.ErrorIs(t, err, migration.ErrRemoteUnavailable)
		assert.Equal(t, 4, attempts)
		assert.Len(t, rec.delays, 3)
	})

	t.Run("cancelled wait stops retrying", func(t *testing.T) {
		rec := &recordingSleep{err: context.Canceled}
		policy := RetryPolicy{MaxAttempts: 5, Sleep: rec.sleep}

		attempts := 0
		err := policy.Do(ctx, "list orders", func(context.Context) error {
			attempts++
			return migration.ErrRemoteUnavailable
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})

	t.Run("custom retryable", func(t *testing.T) {
		flaky := errors.New("flaky")
		policy := RetryPolicy{
			MaxAttempts: 2,
			Retryable:   func(err error) bool { return errors.Is(err, flaky) },
			Sleep:       noSleep,
		}

		attempts := 0
		err := policy.Do(ctx, "op", func(context.Context) error {
			attempts++
			return flaky
		})

		assert.ErrorIs(t, err, migration.ErrRetriesExhausted)
		assert.Equal(t, 2, attempts)
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		attempts := 0
		err := RetryPolicy{Sleep: noSleep}.Do(ctx, "op", func(context.Context) error {
			attempts++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), 0))
}

func TestRetryPolicy_RecordsRetryEvents(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	ctx, span := tp.Tracer("test").Start(context.Background(), "fetch")

	attempts := 0
	policy := RetryPolicy{MaxAttempts: 5, Sleep: noSleep}
	require.NoError(t, policy.Do(ctx, "list products", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return migration.ErrRemoteUnavailable
		}
		return nil
	}))
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, "retry", ev.Name)
	}
}
