package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendErrorMessage(t *testing.T) {
	err := New(KindValidation, "invalid phone number")
	assert.Equal(t, "VALIDATION: invalid phone number", err.Error())

	cause := fmt.Errorf("connection refused")
	wrapped := Wrap(cause, KindChannelTransport, "failed to reach channel API")
	assert.Equal(t, "CHANNEL_TRANSPORT: failed to reach channel API: connection refused", wrapped.Error())
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	wrapped := Wrap(cause, KindStore, "failed to persist entry")

	assert.ErrorIs(t, wrapped, cause)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(New(KindValidation, "bad input")))
	assert.Equal(t, KindChannelTimeout, KindOf(fmt.Errorf("outer: %w", New(KindChannelTimeout, "timed out"))))
	assert.Equal(t, KindChannelTransport, KindOf(errors.New("unclassified")))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsStoreFailure(New(KindStore, "locked")))
	assert.False(t, IsStoreFailure(New(KindChannelRejected, "rejected")))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "invalid phone number", Reason(New(KindValidation, "invalid phone number")))

	cause := fmt.Errorf("status 500")
	assert.Equal(t, "channel rejected message: status 500", Reason(Wrap(cause, KindChannelRejected, "channel rejected message")))

	assert.Equal(t, "plain error", Reason(errors.New("plain error")))
}
