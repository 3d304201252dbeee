package domain

import "time"

// Status represents the current status of a withdrawal receipt.
type Status string

const (
	// StatusPending means the STK push was accepted by the gateway and the
	// customer has been prompted for their PIN.
	StatusPending Status = "pending"

	// StatusSTKFailed means the gateway answered but declined to send the push.
	StatusSTKFailed Status = "stk_failed"

	// StatusError means the gateway call itself failed (transport error or
	// provider error response).
	StatusError Status = "error"

	// StatusProcessing means the callback confirmed the fee payment and the
	// loan is being disbursed.
	StatusProcessing Status = "processing"

	// StatusCancelled means the callback reported the payment as failed,
	// cancelled or timed out.
	StatusCancelled Status = "cancelled"
)

// CanTransition reports whether a receipt may move from s to next.
// Only a pending receipt has an open provider transaction, so only pending
// receipts accept callback outcomes. Everything else is terminal for the
// reference; a failed attempt continues through a new retry receipt instead.
func (s Status) CanTransition(next Status) bool {
	if s == StatusPending {
		return next == StatusProcessing || next == StatusCancelled
	}
	return false
}

// Retryable reports whether a receipt in this status may be retried.
func (s Status) Retryable() bool {
	switch s {
	case StatusSTKFailed, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Receipt represents one withdrawal attempt. A retry never mutates the
// receipt it retries; it creates a new receipt linked via OriginalReference.
type Receipt struct {
	Reference         string // primary key, immutable once assigned
	OriginalReference string // set only on retry receipts
	TransactionID     string
	CheckoutRequestID string
	MerchantRequestID string
	TransactionCode   string // provider settlement proof, set only on success
	Amount            int64  // processing fee in whole KES
	LoanAmount        string // informational, does not affect payment logic
	Phone             string // always in canonical 254... form
	CustomerName      string
	Status            Status
	StatusNote        string
	Timestamp         time.Time
	IsRetry           bool
}
