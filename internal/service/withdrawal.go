package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"swiftpay/internal/domain"
	"swiftpay/internal/gateway"
	"swiftpay/internal/redis"
	"swiftpay/internal/repository"
)

// Reference prefixes distinguish first attempts from retries.
const (
	orderPrefix = "ORDER"
	retryPrefix = "RETRY"
)

const (
	defaultLoanAmount   = "50000"
	placeholderName     = "N/A"
	gatewayCustomerName = "Customer"
)

// ErrStaleCallback is returned by Reconcile when a callback arrives for a
// receipt that has no open provider transaction (already settled, or never
// had an STK push sent). The stored record is left untouched.
var ErrStaleCallback = errors.New("callback ignored: no open transaction for receipt")

// STKGateway is the interface for the payment gateway.
type STKGateway interface {
	Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResponse, error)
}

// WithdrawalService drives the withdrawal lifecycle: it validates and
// initiates STK pushes, reconciles provider callbacks against stored receipts,
// and restarts failed withdrawals through the retry path.
type WithdrawalService struct {
	receipts   repository.ReceiptRepository
	gateway    STKGateway
	deliveries redis.DeliveryGuardInterface
	cache      redis.ReceiptCacheInterface
}

// NewWithdrawalService creates a new WithdrawalService. deliveries and cache
// are optional; pass nil to disable callback deduplication or caching.
func NewWithdrawalService(
	receipts repository.ReceiptRepository,
	gw STKGateway,
	deliveries redis.DeliveryGuardInterface,
	cache redis.ReceiptCacheInterface,
) *WithdrawalService {
	return &WithdrawalService{
		receipts:   receipts,
		gateway:    gw,
		deliveries: deliveries,
		cache:      cache,
	}
}

// newReference builds a caller-visible reference from the current epoch
// millisecond. Not collision-proof under concurrent initiations; collisions
// are vanishingly rare at this traffic level.
func newReference(prefix string) string {
	return prefix + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// InitiateRequest contains the parameters for starting a withdrawal.
type InitiateRequest struct {
	Phone      string // raw, normalized before use
	Amount     int64  // processing fee in whole KES
	LoanAmount string // informational, defaults to defaultLoanAmount
}

// InitiateResult is returned when an STK push was successfully sent.
type InitiateResult struct {
	Reference string
	Message   string
	Receipt   *domain.Receipt
}

// Initiate validates the request, sends the STK push and persists a receipt
// recording the outcome. On gateway rejection or transport failure the receipt
// is persisted before the error is surfaced, so queries and retries have a
// record to act on. Validation and configuration errors persist nothing.
func (s *WithdrawalService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	phone, err := FormatPhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if req.Amount < 1 {
		return nil, ErrInvalidAmount
	}

	loanAmount := req.LoanAmount
	if loanAmount == "" {
		loanAmount = defaultLoanAmount
	}

	reference := newReference(orderPrefix)

	return s.initiate(ctx, initiation{
		reference:    reference,
		phone:        phone,
		amount:       req.Amount,
		loanAmount:   loanAmount,
		customerName: placeholderName,
		gatewayName:  gatewayCustomerName,
		pendingNote:  pendingNote(phone),
	})
}

// Retry starts a fresh withdrawal attempt for a previously failed reference.
// The original receipt is never mutated; the new receipt carries a RETRY
// reference, links back via OriginalReference and copies the original's
// amount, phone, name and loan amount.
func (s *WithdrawalService) Retry(ctx context.Context, originalReference string) (*InitiateResult, error) {
	original, err := s.receipts.GetByReference(ctx, originalReference)
	if err != nil {
		return nil, err
	}

	if !original.Status.Retryable() {
		return nil, &NotRetryableError{Status: original.Status}
	}

	gatewayName := original.CustomerName
	if gatewayName == "" || gatewayName == placeholderName {
		gatewayName = gatewayCustomerName
	}

	customerName := original.CustomerName
	if customerName == "" {
		customerName = placeholderName
	}

	reference := newReference(retryPrefix)

	return s.initiate(ctx, initiation{
		reference:         reference,
		originalReference: originalReference,
		phone:             original.Phone,
		amount:            original.Amount,
		loanAmount:        original.LoanAmount,
		customerName:      customerName,
		gatewayName:       gatewayName,
		pendingNote:       retryPendingNote(originalReference, original.Phone),
		isRetry:           true,
	})
}

// initiation carries the resolved parameters shared by the first-attempt and
// retry paths.
type initiation struct {
	reference         string
	originalReference string
	phone             string
	amount            int64
	loanAmount        string
	customerName      string // stored on the receipt
	gatewayName       string // sent to the provider
	pendingNote       string
	isRetry           bool
}

func (s *WithdrawalService) initiate(ctx context.Context, in initiation) (*InitiateResult, error) {
	ack, err := s.gateway.Initiate(ctx, gateway.InitiateRequest{
		Amount:       in.amount,
		Phone:        in.phone,
		Reference:    in.reference,
		CustomerName: in.gatewayName,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrAPIKeyNotSet) {
			return nil, ErrGatewayNotConfigured
		}

		note := gatewayErrorNote(err)
		receipt := s.newAttemptReceipt(in, domain.StatusError, note)
		if storeErr := s.storeReceipt(ctx, receipt); storeErr != nil {
			log.Printf("failed to persist error receipt %s: %v", in.reference, storeErr)
		}
		return nil, &STKPushError{Receipt: receipt, Message: note, Transport: true}
	}

	if ack.Initiated() {
		receipt := s.newAttemptReceipt(in, domain.StatusPending, in.pendingNote)
		receipt.TransactionID = ack.TransactionID
		receipt.CheckoutRequestID = ack.CheckoutRequestID
		receipt.MerchantRequestID = ack.MerchantRequestID

		if err := s.storeReceipt(ctx, receipt); err != nil {
			return nil, err
		}

		message := ack.Message
		if message == "" {
			message = "STK push sent, check your phone"
		}

		return &InitiateResult{Reference: in.reference, Message: message, Receipt: receipt}, nil
	}

	note := ack.Error
	if note == "" {
		note = noteSTKFailed
	}

	receipt := s.newAttemptReceipt(in, domain.StatusSTKFailed, note)
	receipt.TransactionID = ack.TransactionID
	receipt.CheckoutRequestID = ack.CheckoutRequestID
	receipt.MerchantRequestID = ack.MerchantRequestID

	if storeErr := s.storeReceipt(ctx, receipt); storeErr != nil {
		log.Printf("failed to persist stk_failed receipt %s: %v", in.reference, storeErr)
	}

	message := ack.Error
	if message == "" {
		message = "Failed to initiate payment"
	}

	return nil, &STKPushError{Receipt: receipt, Message: message}
}

func (s *WithdrawalService) newAttemptReceipt(in initiation, status domain.Status, note string) *domain.Receipt {
	return &domain.Receipt{
		Reference:         in.reference,
		OriginalReference: in.originalReference,
		Amount:            in.amount,
		LoanAmount:        in.loanAmount,
		Phone:             in.phone,
		CustomerName:      in.customerName,
		Status:            status,
		StatusNote:        note,
		Timestamp:         time.Now(),
		IsRetry:           in.isRetry,
	}
}

func (s *WithdrawalService) storeReceipt(ctx context.Context, receipt *domain.Receipt) error {
	if err := s.receipts.Create(ctx, receipt); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, receipt)
	}
	return nil
}

// CallbackResult is the M-Pesa result object inside a callback payload.
// ResultCode is a pointer so an absent result code is never confused with the
// success code 0.
type CallbackResult struct {
	ResultCode         *int
	ResultDesc         string
	MpesaReceiptNumber string
	Amount             int64
	Phone              string
	Name               string
	FirstName          string
	MiddleName         string
	LastName           string
}

// CallbackEvent is the provider's asynchronous notification of a payment
// attempt's outcome.
type CallbackEvent struct {
	ExternalReference string
	Status            string
	Success           bool
	TransactionID     string
	CheckoutRequestID string
	MerchantRequestID string
	Timestamp         time.Time // zero when absent from the payload
	Result            *CallbackResult
}

// succeeded mirrors the provider's success condition: an explicit completed
// acknowledgement, or result code 0 in the result object.
func (ev CallbackEvent) succeeded() bool {
	if strings.EqualFold(ev.Status, "completed") && ev.Success {
		return true
	}
	return ev.Result != nil && ev.Result.ResultCode != nil && *ev.Result.ResultCode == resultCodeSuccess
}

// Reconcile applies a provider callback to the stored receipt for its
// reference. A callback for an unknown reference creates a fresh record;
// fields absent from the payload keep their stored values. A success outcome
// moves the receipt to processing and records the M-Pesa receipt number; any
// other outcome moves it to cancelled and clears the transaction code.
//
// The caller must acknowledge the callback with a success response no matter
// what Reconcile returns; failures here are for logs and metrics only.
func (s *WithdrawalService) Reconcile(ctx context.Context, ev CallbackEvent) (*domain.Receipt, error) {
	if ev.ExternalReference == "" {
		return nil, errors.New("callback missing external_reference")
	}

	delivered := false
	if s.deliveries != nil && ev.TransactionID != "" {
		first, err := s.deliveries.MarkDelivered(ctx, ev.ExternalReference, ev.TransactionID)
		if err != nil {
			// Dedup is best effort; reconciliation is safe to repeat.
			log.Printf("delivery guard unavailable for %s: %v", ev.ExternalReference, err)
		} else if !first {
			log.Printf("duplicate callback delivery ignored: reference=%s transaction_id=%s",
				ev.ExternalReference, ev.TransactionID)
			existing, err := s.receipts.GetByReference(ctx, ev.ExternalReference)
			if err != nil {
				return nil, nil
			}
			return existing, nil
		} else {
			delivered = true
		}
	}

	existing, err := s.receipts.GetByReference(ctx, ev.ExternalReference)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		existing = nil
	}

	target := domain.StatusCancelled
	if ev.succeeded() {
		target = domain.StatusProcessing
	}

	if existing != nil && !existing.Status.CanTransition(target) {
		return existing, ErrStaleCallback
	}

	merged := s.mergeCallback(existing, ev, target)

	if existing == nil {
		err = s.receipts.Create(ctx, merged)
	} else {
		err = s.receipts.Update(ctx, merged)
	}
	if err != nil {
		// The write failed after the delivery was marked. Drop the mark so the
		// provider's redelivery is not swallowed as a duplicate; it is the only
		// path that can still bring this receipt up to date.
		if delivered {
			if ferr := s.deliveries.Forget(ctx, ev.ExternalReference, ev.TransactionID); ferr != nil {
				log.Printf("failed to release delivery mark for %s: %v", ev.ExternalReference, ferr)
			}
		}
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, merged)
	}

	return merged, nil
}

// mergeCallback folds a callback into the existing receipt. Payload fields win
// when present; stored values are never regressed to empty, with one
// exception: the transaction code is cleared on failure.
func (s *WithdrawalService) mergeCallback(existing *domain.Receipt, ev CallbackEvent, target domain.Status) *domain.Receipt {
	var merged domain.Receipt
	if existing != nil {
		merged = *existing
	}

	merged.Reference = ev.ExternalReference
	if ev.TransactionID != "" {
		merged.TransactionID = ev.TransactionID
	}
	if ev.CheckoutRequestID != "" {
		merged.CheckoutRequestID = ev.CheckoutRequestID
	}
	if ev.MerchantRequestID != "" {
		merged.MerchantRequestID = ev.MerchantRequestID
	}

	if ev.Result != nil {
		if ev.Result.Amount > 0 {
			merged.Amount = ev.Result.Amount
		}
		if ev.Result.Phone != "" {
			if phone, err := FormatPhone(ev.Result.Phone); err == nil {
				merged.Phone = phone
			}
		}
	}

	merged.CustomerName = callbackCustomerName(ev.Result, existing)

	if merged.LoanAmount == "" {
		merged.LoanAmount = defaultLoanAmount
	}

	if target == domain.StatusProcessing {
		if ev.Result != nil {
			merged.TransactionCode = ev.Result.MpesaReceiptNumber
		}
		merged.Status = domain.StatusProcessing
		merged.StatusNote = processingNote(ev.ExternalReference)
	} else {
		merged.TransactionCode = ""
		merged.Status = domain.StatusCancelled
		merged.StatusNote = callbackFailureNote(ev.Result)
	}

	merged.Timestamp = ev.Timestamp
	if merged.Timestamp.IsZero() {
		merged.Timestamp = time.Now()
	}

	return &merged
}

// callbackCustomerName derives the customer name: the result's Name field,
// else the assembled first/middle/last names, else the stored name, else the
// placeholder.
func callbackCustomerName(result *CallbackResult, existing *domain.Receipt) string {
	if result != nil {
		if result.Name != "" {
			return result.Name
		}
		name := joinNonEmpty(result.FirstName, result.MiddleName, result.LastName)
		if name != "" {
			return name
		}
	}
	if existing != nil && existing.CustomerName != "" {
		return existing.CustomerName
	}
	return placeholderName
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// GetReceipt retrieves a receipt by reference, consulting the cache first.
func (s *WithdrawalService) GetReceipt(ctx context.Context, reference string) (*domain.Receipt, error) {
	if s.cache != nil {
		if receipt, err := s.cache.Get(ctx, reference); err == nil && receipt != nil {
			return receipt, nil
		}
	}

	receipt, err := s.receipts.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, receipt)
	}

	return receipt, nil
}

// LastWithdrawal summarizes a customer's most recent withdrawal attempt.
type LastWithdrawal struct {
	Reference  string
	Status     domain.Status
	Amount     int64
	LoanAmount string
	Timestamp  time.Time
	StatusNote string
	CanRetry   bool
}

// WithdrawalHistory is the result of a last-withdrawal lookup by phone.
type WithdrawalHistory struct {
	HasPrevious      bool
	Last             *LastWithdrawal
	TotalWithdrawals int
}

// CheckLastWithdrawal returns the most recent withdrawal for a phone number
// together with whether it can be retried.
func (s *WithdrawalService) CheckLastWithdrawal(ctx context.Context, rawPhone string) (*WithdrawalHistory, error) {
	phone, err := FormatPhone(rawPhone)
	if err != nil {
		return nil, err
	}

	receipts, err := s.receipts.ListByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	if len(receipts) == 0 {
		return &WithdrawalHistory{}, nil
	}

	last := receipts[0]
	return &WithdrawalHistory{
		HasPrevious: true,
		Last: &LastWithdrawal{
			Reference:  last.Reference,
			Status:     last.Status,
			Amount:     last.Amount,
			LoanAmount: last.LoanAmount,
			Timestamp:  last.Timestamp,
			StatusNote: last.StatusNote,
			CanRetry:   last.Status.Retryable(),
		},
		TotalWithdrawals: len(receipts),
	}, nil
}
