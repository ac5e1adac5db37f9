package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"coursebook/entity"
)

// RetryPolicy bounds how gateway calls are retried. It is passed into the
// clients explicitly instead of each caller rolling its own loop.
type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Execute runs op, retrying TransientError with exponential backoff up to
// MaxAttempts total attempts. Permanent errors abort immediately. When the
// attempt budget is spent on transient failures the result is
// entity.ErrPaymentUnavailable.
func (p RetryPolicy) Execute(ctx context.Context, op func() error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.InitialInterval
	expo.MaxInterval = p.MaxInterval

	// a zero-value policy must not underflow into unbounded retries
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(expo, attempts-1), ctx)

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}

		var transient TransientError
		if errors.As(err, &transient) {
			return err
		}

		return backoff.Permanent(err)
	}, bo)

	var transient TransientError
	if errors.As(err, &transient) {
		return fmt.Errorf("%w: %v", entity.ErrPaymentUnavailable, transient.Err)
	}

	return err
}
