package checkout

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a checkout is started while another saga is in
// flight for the same session.  Exclusion is per user session; true seat
// contention between clients is decided by the event service at reserve
// time.
var ErrBusy = errors.New("checkout already in progress")

// ErrNotRetryable is returned by Resubmit when the saga is not parked in the
// retryable-failure state, and by Resume when no payment session is pending.
var ErrNotRetryable = errors.New("no retryable checkout to resume")

// FailureCode classifies how a checkout attempt failed.
type FailureCode string

const (
	CodeValidation                FailureCode = "VALIDATION_ERROR"
	CodeReservationRejected       FailureCode = "RESERVATION_REJECTED"
	CodeOrderCreationFailed       FailureCode = "ORDER_CREATION_FAILED"
	CodePaymentSessionFailed      FailureCode = "PAYMENT_SESSION_CREATION_FAILED"
	CodePaymentSessionTimeout     FailureCode = "PAYMENT_SESSION_TIMEOUT"
	CodePaymentServiceUnavailable FailureCode = "PAYMENT_SERVICE_UNAVAILABLE"
	CodePaymentFailedRetryable    FailureCode = "PAYMENT_FAILED_RETRYABLE"
	CodePaymentFailedTerminal     FailureCode = "PAYMENT_FAILED_TERMINAL"
	CodeNetwork                   FailureCode = "NETWORK_ERROR"
)

// Failure is the error type for every checkout outcome that is not a
// success.  Message is the most specific detail available: the backend's own
// words when it reported any, otherwise a generic message naming the step
// that failed.
type Failure struct {
	Code    FailureCode
	Step    string
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Message != "" {
		return f.Message
	}
	return fmt.Sprintf("%s failed", f.Step)
}

func (f *Failure) Unwrap() error { return f.Err }

// failf builds a Failure with a formatted message.
func failf(code FailureCode, step string, err error, format string, args ...any) *Failure {
	return &Failure{Code: code, Step: step, Message: fmt.Sprintf(format, args...), Err: err}
}
