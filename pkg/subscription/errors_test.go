package subscription_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliopress/folio/pkg/subscription"
)

func TestPartialError(t *testing.T) {
	t.Parallel()

	t.Run("message names the operation and every completed step", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("db down")
		pe := &subscription.PartialError{
			Op:         "cancel",
			Completed:  []string{subscription.StepStripeCancelScheduled},
			FailedStep: subscription.StepLocalCancelFlagSet,
			Err:        cause,
		}

		msg := pe.Error()
		assert.Contains(t, msg, "cancel")
		assert.Contains(t, msg, subscription.StepStripeCancelScheduled)
		assert.Contains(t, msg, subscription.StepLocalCancelFlagSet)
		assert.Contains(t, msg, "db down")

		assert.ErrorIs(t, pe, cause)
	})

	t.Run("empty completed list reads as none", func(t *testing.T) {
		t.Parallel()

		pe := &subscription.PartialError{Op: "cancel", FailedStep: "x", Err: errors.New("boom")}
		assert.Contains(t, pe.Error(), "none")
	})

	t.Run("extraction through a wrap chain", func(t *testing.T) {
		t.Parallel()

		pe := &subscription.PartialError{Op: "change_tier", FailedStep: "x", Err: errors.New("boom")}
		wrapped := fmt.Errorf("handler: %w", pe)

		got, ok := subscription.AsPartialError(wrapped)
		require.True(t, ok)
		assert.Equal(t, "change_tier", got.Op)

		_, ok = subscription.AsPartialError(errors.New("plain"))
		assert.False(t, ok)
	})
}

func TestStatus_IsBillable(t *testing.T) {
	t.Parallel()

	billable := []subscription.Status{
		subscription.StatusTrialing,
		subscription.StatusActive,
		subscription.StatusPastDue,
	}
	for _, s := range billable {
		assert.True(t, s.IsBillable(), string(s))
	}

	notBillable := []subscription.Status{
		subscription.StatusIncomplete,
		subscription.StatusIncompleteExpired,
		subscription.StatusCanceled,
		subscription.StatusUnpaid,
		subscription.Status("unknown"),
	}
	for _, s := range notBillable {
		assert.False(t, s.IsBillable(), string(s))
	}
}
