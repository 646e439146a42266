package migrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/logger"
	"github.com/erp/migrator/internal/infrastructure/telemetry"
)

// Retry defaults
const (
	DefaultRetryAttempts = 10
	DefaultRetryDelay    = 10 * time.Second
)

// RetryPolicy retries an operation a bounded number of times with a fixed
// delay. Errors Retryable rejects are returned on the first attempt.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
	Sleep       func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries transient remote failures 10 times, 10s apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultRetryAttempts,
		Delay:       DefaultRetryDelay,
		Retryable:   migration.IsRetryable,
		Sleep:       sleepContext,
	}
}

// Do runs fn until it succeeds, fails permanently, or the attempts run out.
// Running out wraps the last error in migration.ErrRetriesExhausted.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = migration.IsRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		logger.L(ctx).Warn("retrying remote call",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", p.Delay),
			zap.Error(err),
		)
		telemetry.AddEvent(trace.SpanFromContext(ctx), "retry",
			telemetry.SpanAttrAttempt, attempt,
			"operation", op,
			"error", err.Error(),
		)
		if serr := sleep(ctx, p.Delay); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("%w: %s failed %d times: %w", migration.ErrRetriesExhausted, op, attempts, err)
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
