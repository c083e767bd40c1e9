package automation

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds a retried UI interaction.
type RetryPolicy struct {
	Attempts int           `mapstructure:"attempts"` // Attempts is the total number of tries, at least 1.
	Delay    time.Duration `mapstructure:"delay"`    // Delay is the pause between tries.
}

// Retry runs op until it succeeds, returns a non-recoverable error, the attempts are
// exhausted or ctx is done. The last error from op is returned.
func Retry(ctx context.Context, policy RetryPolicy, op func() error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var policyBackoff backoff.BackOff = backoff.NewConstantBackOff(policy.Delay)
	policyBackoff = backoff.WithMaxRetries(policyBackoff, uint64(attempts-1))
	policyBackoff = backoff.WithContext(policyBackoff, ctx)

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !Recoverable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policyBackoff)
}

// Poll calls probe every interval until it reports done, probe fails permanently or
// timeout elapses, in which case ErrTimeout is returned.
func Poll(parent context.Context, timeout, interval time.Duration, probe func() (bool, error)) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ticker := backoff.NewTicker(backoff.WithContext(backoff.NewConstantBackOff(interval), ctx))
	defer ticker.Stop()

	for range ticker.C {
		done, err := probe()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	if err := parent.Err(); err != nil {
		return err
	}
	return ErrTimeout
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
