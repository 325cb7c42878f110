package errors

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure classes the dispatch core distinguishes.
type Kind string

const (
	// KindValidation covers bad phone numbers and empty bodies. Entries are
	// failed immediately without a channel attempt.
	KindValidation Kind = "VALIDATION"

	// KindPolicyDeferral is not a delivery failure: the rate budget is
	// exhausted or the sending window is closed, and the entry stays pending.
	KindPolicyDeferral Kind = "POLICY_DEFERRAL"

	// KindChannelUnconfigured marks the demo fallback used when channel
	// credentials are absent. It is treated as success but flagged.
	KindChannelUnconfigured Kind = "CHANNEL_UNCONFIGURED"

	// KindChannelTimeout means the channel API did not answer in time.
	KindChannelTimeout Kind = "CHANNEL_TIMEOUT"

	// KindChannelTransport covers network-level send failures.
	KindChannelTransport Kind = "CHANNEL_TRANSPORT"

	// KindChannelRejected means the channel API returned a non-success
	// status carrying a remote error message.
	KindChannelRejected Kind = "CHANNEL_REJECTED"

	// KindStore means a queue status transition could not be persisted.
	// This is the only class that aborts a dispatch run.
	KindStore Kind = "STORE"
)

// SendError is a classified dispatch failure carrying a human message.
type SendError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *SendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SendError) Unwrap() error {
	return e.Cause
}

// New creates a SendError without an underlying cause.
func New(kind Kind, message string) *SendError {
	return &SendError{Kind: kind, Message: message}
}

// Wrap attaches a classification to an existing error.
func Wrap(err error, kind Kind, message string) *SendError {
	return &SendError{Kind: kind, Message: message, Cause: err}
}

// KindOf extracts the classification from an error chain. Unclassified
// errors are reported as transport failures.
func KindOf(err error) Kind {
	var se *SendError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindChannelTransport
}

// IsStoreFailure reports whether the error means queue state could not be
// persisted and the current run must abort.
func IsStoreFailure(err error) bool {
	return KindOf(err) == KindStore
}

// Reason returns the human message to record as an entry's last_error.
func Reason(err error) string {
	var se *SendError
	if errors.As(err, &se) {
		if se.Cause != nil {
			return fmt.Sprintf("%s: %v", se.Message, se.Cause)
		}
		return se.Message
	}
	return err.Error()
}
