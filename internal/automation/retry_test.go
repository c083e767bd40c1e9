package automation_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	ctx := t.Context()
	policy := automation.RetryPolicy{Attempts: 2, Delay: time.Millisecond}

	t.Run("succeeds on first try", func(t *testing.T) {
		calls := 0
		err := automation.Retry(ctx, policy, func() error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("recovers from intercepted click", func(t *testing.T) {
		calls := 0
		err := automation.Retry(ctx, policy, func() error {
			calls++
			if calls == 1 {
				return fmt.Errorf("click: %w", automation.ErrClickIntercepted)
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("gives up after the bound", func(t *testing.T) {
		calls := 0
		err := automation.Retry(ctx, policy, func() error {
			calls++
			return automation.ErrStaleElement
		})

		require.ErrorIs(t, err, automation.ErrStaleElement)
		assert.Equal(t, 2, calls)
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		calls := 0
		err := automation.Retry(ctx, policy, func() error {
			calls++
			return automation.ErrTimeout
		})

		require.ErrorIs(t, err, automation.ErrTimeout)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still tries once", func(t *testing.T) {
		calls := 0
		_ = automation.Retry(ctx, automation.RetryPolicy{}, func() error {
			calls++
			return automation.ErrNotInteractable
		})

		assert.Equal(t, 1, calls)
	})
}

func TestPoll(t *testing.T) {
	t.Run("returns when probe is done", func(t *testing.T) {
		calls := 0
		err := automation.Poll(t.Context(), time.Second, time.Millisecond, func() (bool, error) {
			calls++
			return calls == 3, nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("times out", func(t *testing.T) {
		err := automation.Poll(t.Context(), 20*time.Millisecond, 5*time.Millisecond, func() (bool, error) {
			return false, nil
		})

		require.ErrorIs(t, err, automation.ErrTimeout)
	})

	t.Run("probe error stops polling", func(t *testing.T) {
		err := automation.Poll(t.Context(), time.Second, time.Millisecond, func() (bool, error) {
			return false, assert.AnError
		})

		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("parent cancellation wins", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		err := automation.Poll(ctx, time.Second, time.Millisecond, func() (bool, error) {
			return false, nil
		})

		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	require.ErrorIs(t, automation.Sleep(ctx, time.Hour), context.Canceled)
	require.NoError(t, automation.Sleep(t.Context(), 0))
}

func TestRecoverable(t *testing.T) {
	assert.True(t, automation.Recoverable(fmt.Errorf("x: %w", automation.ErrClickIntercepted)))
	assert.True(t, automation.Recoverable(automation.ErrStaleElement))
	assert.False(t, automation.Recoverable(automation.ErrElementNotFound))
	assert.False(t, automation.Recoverable(nil))
}

func TestSelectorString(t *testing.T) {
	assert.Equal(t, "css=#location", automation.Selector{Value: "#location"}.String())
	assert.Equal(t, "id=location", automation.ID("location").String())
	assert.True(t, automation.Selector{}.IsZero())
}
