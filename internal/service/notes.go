package service

import (
	"errors"
	"fmt"

	"swiftpay/internal/gateway"
)

// User-facing status narratives. These are product copy shown on receipts and
// in the client app, keyed off gateway and M-Pesa result codes.
const (
	noteSTKFailed   = "STK push failed to send. Please try again or contact support."
	noteSystemError = "System error occurred. Please try again later."

	noteRateLimited         = "Rate limit exceeded. Please try again later."
	notePersonalKYC         = "Account verification required. Please contact support."
	noteChannelKYC          = "Channel verification required. Please contact support."
	noteInsufficientService = "Service temporarily unavailable. Please try again later."

	noteCancelledOnPhone = "You cancelled the payment request on your phone. Please try again to complete your loan withdrawal. If you had an issue contact us using the chat blue button at the left side of your phone screen for quick help."
	notePINTimeout       = "The request timed out. You did not enter your M-Pesa PIN to complete withdrawal request. Please try again."
	noteBalanceTooLow    = "Payment failed due to insufficient M-Pesa balance. Please top up and try to withdraw again."
	notePaymentFailed    = "Payment failed or was cancelled."
)

// M-Pesa result codes reported in callback payloads.
const (
	resultCodeSuccess         = 0
	resultCodeUserCancelled   = 1032
	resultCodePINTimeout      = 1037
	resultCodeInsufficientBal = 2001
)

func pendingNote(phone string) string {
	return fmt.Sprintf("STK push sent to %s. Please enter your M-Pesa PIN to complete the fee payment and loan disbursement. Withdrawal started.....", phone)
}

func retryPendingNote(originalReference, phone string) string {
	return fmt.Sprintf("Retry initiated for failed withdrawal %s. STK push sent to %s. Please enter your M-Pesa PIN.", originalReference, phone)
}

func processingNote(reference string) string {
	return fmt.Sprintf("Your fee payment has been received and verified. Loan Reference: %s. Your loan is now in the final processing stage and funds are reserved for disbursement. You will receive the amount in your selected account within 24 hours, an sms will be sent to you. Thank you for choosing SwiftLoan Kenya.", reference)
}

// gatewayErrorNote maps a failed gateway call to a user-facing message.
// Known structured error codes get specific copy; anything else falls back to
// the provider's own message or a generic system error.
func gatewayErrorNote(err error) string {
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		return noteSystemError
	}

	switch gwErr.Code {
	case gateway.ErrCodeRateLimit:
		if gwErr.Details != "" {
			return gwErr.Details
		}
		return noteRateLimited
	case gateway.ErrCodePersonalKYC:
		return notePersonalKYC
	case gateway.ErrCodeChannelKYC:
		return noteChannelKYC
	case gateway.ErrCodeInsufficientBalance:
		return noteInsufficientService
	}

	if gwErr.Provider && gwErr.Message != "" {
		// Unrecognized code, but the provider supplied its own message.
		return gwErr.Message
	}

	return noteSystemError
}

// callbackFailureNote maps a failed callback result to a user-facing message.
func callbackFailureNote(result *CallbackResult) string {
	if result == nil {
		return notePaymentFailed
	}

	if result.ResultCode != nil {
		switch *result.ResultCode {
		case resultCodeUserCancelled:
			return noteCancelledOnPhone
		case resultCodePINTimeout:
			return notePINTimeout
		case resultCodeInsufficientBal:
			return noteBalanceTooLow
		}
	}

	if result.ResultDesc != "" {
		return result.ResultDesc
	}

	return notePaymentFailed
}
