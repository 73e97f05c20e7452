package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWrapping(t *testing.T) {
	err := errInvalidState(StateAllocationPending, "set info", ErrSchedulerBusy)

	assert.ErrorIs(t, err, ErrSchedulerBusy)
	assert.Equal(t, ErrorCategoryState, CategoryOf(err))
	assert.Equal(t, StateAllocationPending, err.State)
	assert.Equal(t, "set info", err.Fields["operation"])
	assert.Contains(t, err.Error(), "[STATE:INVALID_SCHEDULER_STATE]")
	assert.False(t, IsRetryable(err))
}

func TestAllocationErrorRetryable(t *testing.T) {
	tests := []struct {
		kind      AllocationFailure
		retryable bool
	}{
		{FailureNetwork, true},
		{FailureRejected, false},
		{FailureSecurityLevelUnsupported, false},
		{FailureMalformedResponse, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			cause := &AllocationError{Kind: tt.kind, StatusCode: 488, Reason: "Not Acceptable Here"}
			err := errAllocation(cause)

			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, ErrorCategoryAllocation, CategoryOf(err))
			assert.Equal(t, string(tt.kind), err.Fields["failure"])
			assert.Equal(t, 488, err.Fields["status_code"])

			var allocErr *AllocationError
			require.ErrorAs(t, err, &allocErr)
			assert.Equal(t, tt.kind, allocErr.Kind)
		})
	}
}

func TestPlainErrorsHaveNoCategory(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, ErrorCategory(""), CategoryOf(plain))
	assert.False(t, IsRetryable(plain))
	assert.True(t, IsRetryable(errDelivery("sip:bob@example.com", plain)))
}

func TestFailedRecipients(t *testing.T) {
	results := []InvitationResult{
		{Recipient: bob},
		{Recipient: carol, Err: errors.New("timeout")},
		{Recipient: dave, Cancel: true},
	}
	failed := FailedRecipients(results)
	require.Len(t, failed, 1)
	assert.True(t, failed[0].WeakEqual(carol))
}
