package rodriver

import (
	"context"
	"errors"
	"testing"

	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	t.Run("deadline is a timeout", func(t *testing.T) {
		err := translate(context.DeadlineExceeded)
		assert.ErrorIs(t, err, automation.ErrTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("detached node is stale", func(t *testing.T) {
		err := translate(&cdp.Error{Code: -32000, Message: "Node is detached from document"})
		assert.ErrorIs(t, err, automation.ErrStaleElement)
		assert.True(t, automation.Recoverable(err))
	})

	t.Run("other protocol errors pass through", func(t *testing.T) {
		orig := &cdp.Error{Code: -32000, Message: "Cannot navigate to invalid URL"}
		err := translate(orig)
		assert.Same(t, orig, err)
		assert.False(t, automation.Recoverable(err))
	})

	t.Run("unknown errors pass through", func(t *testing.T) {
		orig := errors.New("boom")
		assert.Same(t, orig, translate(orig))
	})
}
