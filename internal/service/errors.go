package service

import (
	"errors"

	"swiftpay/internal/domain"
)

var (
	// ErrInvalidPhoneFormat is returned when a phone number does not match any
	// accepted Kenyan mobile format.
	ErrInvalidPhoneFormat = errors.New("invalid phone format")

	// ErrInvalidAmount is returned when the fee amount is below 1 KES.
	ErrInvalidAmount = errors.New("amount must be >= 1")

	// ErrGatewayNotConfigured is returned when no gateway API key is set.
	// Nothing is persisted and no network call is attempted.
	ErrGatewayNotConfigured = errors.New("server configuration error: API key not set")

	// ErrNotRetryable is returned when a retry is requested for a receipt that
	// is not in a failure state.
	ErrNotRetryable = errors.New("this withdrawal cannot be retried")
)

// NotRetryableError reports a retry attempt against a receipt whose current
// status is not a failure state. Matches ErrNotRetryable with errors.Is.
type NotRetryableError struct {
	Status domain.Status
}

func (e *NotRetryableError) Error() string {
	return ErrNotRetryable.Error()
}

func (e *NotRetryableError) Is(target error) bool {
	return target == ErrNotRetryable
}

// STKPushError is returned when an initiation reached the gateway but did not
// produce a pending withdrawal. The failure receipt has already been persisted
// so a later status query or retry has something to act on.
type STKPushError struct {
	// Receipt is the persisted stk_failed or error receipt.
	Receipt *domain.Receipt

	// Message is the user-facing explanation, also stored as the receipt's
	// status note.
	Message string

	// Transport is true when the gateway was unreachable, timed out or
	// returned an error response, false for a business rejection in a 2xx body.
	Transport bool
}

func (e *STKPushError) Error() string {
	return e.Message
}
