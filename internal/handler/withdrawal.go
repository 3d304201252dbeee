package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"

	"swiftpay/internal/domain"
	"swiftpay/internal/repository"
	"swiftpay/internal/service"
)

// WithdrawalHandler handles HTTP requests for withdrawals.
type WithdrawalHandler struct {
	withdrawals *service.WithdrawalService
	receipts    *service.ReceiptService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawals *service.WithdrawalService, receipts *service.ReceiptService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals, receipts: receipts}
}

// PayRequest is the HTTP request body for initiating a withdrawal.
// loan_amount arrives as either a number or a string depending on the client.
type PayRequest struct {
	Phone      string          `json:"phone"`
	Amount     float64         `json:"amount"`
	LoanAmount json.RawMessage `json:"loan_amount"`
}

// ReceiptResponse is the wire form of a receipt.
type ReceiptResponse struct {
	Reference         string  `json:"reference"`
	OriginalReference string  `json:"original_reference,omitempty"`
	TransactionID     *string `json:"transaction_id"`
	CheckoutRequestID *string `json:"checkout_request_id"`
	MerchantRequestID *string `json:"merchant_request_id"`
	TransactionCode   *string `json:"transaction_code"`
	Amount            int64   `json:"amount"`
	LoanAmount        string  `json:"loan_amount"`
	Phone             string  `json:"phone"`
	CustomerName      string  `json:"customer_name"`
	Status            string  `json:"status"`
	StatusNote        string  `json:"status_note"`
	Timestamp         string  `json:"timestamp"`
	IsRetry           bool    `json:"is_retry,omitempty"`
}

func toReceiptResponse(r *domain.Receipt) ReceiptResponse {
	return ReceiptResponse{
		Reference:         r.Reference,
		OriginalReference: r.OriginalReference,
		TransactionID:     nullable(r.TransactionID),
		CheckoutRequestID: nullable(r.CheckoutRequestID),
		MerchantRequestID: nullable(r.MerchantRequestID),
		TransactionCode:   nullable(r.TransactionCode),
		Amount:            r.Amount,
		LoanAmount:        r.LoanAmount,
		Phone:             r.Phone,
		CustomerName:      r.CustomerName,
		Status:            string(r.Status),
		StatusNote:        r.StatusNote,
		Timestamp:         r.Timestamp.UTC().Format(time.RFC3339),
		IsRetry:           r.IsRetry,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// rawString renders a raw JSON scalar as a plain string.
func rawString(raw json.RawMessage) string {
	return strings.Trim(strings.TrimSpace(string(raw)), `"`)
}

// Pay handles POST /pay
func (h *WithdrawalHandler) Pay(c *gin.Context) {
	var req PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	// Validate before rounding, so 0.6 is rejected rather than rounded up to 1.
	if req.Amount < 1 {
		respondError(c, service.ErrInvalidAmount)
		return
	}

	result, err := h.withdrawals.Initiate(c.Request.Context(), service.InitiateRequest{
		Phone:      req.Phone,
		Amount:     int64(math.Round(req.Amount)),
		LoanAmount: rawString(req.LoanAmount),
	})
	if err != nil {
		h.respondInitiateError(c, err, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   result.Message,
		"reference": result.Reference,
		"receipt":   toReceiptResponse(result.Receipt),
	})
}

// Retry handles POST /retry/:reference
func (h *WithdrawalHandler) Retry(c *gin.Context) {
	originalReference := c.Param("reference")

	result, err := h.withdrawals.Retry(c.Request.Context(), originalReference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Original withdrawal not found"})
			return
		}

		var notRetryable *service.NotRetryableError
		if errors.As(err, &notRetryable) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":        false,
				"error":          err.Error(),
				"current_status": string(notRetryable.Status),
			})
			return
		}

		h.respondInitiateError(c, err, originalReference)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"message":            result.Message,
		"reference":          result.Reference,
		"original_reference": originalReference,
		"receipt":            toReceiptResponse(result.Receipt),
	})
}

// respondInitiateError renders initiation failures for both the first-attempt
// and retry paths. Gateway failures carry the persisted receipt so the client
// can render it.
func (h *WithdrawalHandler) respondInitiateError(c *gin.Context, err error, originalReference string) {
	var pushErr *service.STKPushError
	if errors.As(err, &pushErr) {
		body := gin.H{
			"success": false,
			"error":   pushErr.Message,
			"receipt": toReceiptResponse(pushErr.Receipt),
		}
		if originalReference != "" {
			body["original_reference"] = originalReference
		}
		c.JSON(mapErrorToHTTPStatus(err), body)
		return
	}

	respondError(c, err)
}

// CallbackRequest is the provider's webhook payload.
type CallbackRequest struct {
	ExternalReference string                 `json:"external_reference"`
	Status            string                 `json:"status"`
	Success           bool                   `json:"success"`
	TransactionID     string                 `json:"transaction_id"`
	CheckoutRequestID string                 `json:"checkout_request_id"`
	MerchantRequestID string                 `json:"merchant_request_id"`
	Timestamp         string                 `json:"timestamp"`
	Result            *CallbackResultPayload `json:"result"`
}

// CallbackResultPayload is the M-Pesa result object. Phone arrives as either a
// number or a string depending on the provider's mood.
type CallbackResultPayload struct {
	ResultCode         *int            `json:"ResultCode"`
	ResultDesc         string          `json:"ResultDesc"`
	MpesaReceiptNumber string          `json:"MpesaReceiptNumber"`
	Amount             float64         `json:"Amount"`
	Phone              json.RawMessage `json:"Phone"`
	Name               string          `json:"Name"`
	FirstName          string          `json:"FirstName"`
	MiddleName         string          `json:"MiddleName"`
	LastName           string          `json:"LastName"`
}

// callbackAck is the fixed acknowledgement. The provider retries delivery
// unboundedly on anything else, so this endpoint never returns an error.
var callbackAck = gin.H{"ResultCode": 0, "ResultDesc": "Success"}

// Callback handles POST /callback
func (h *WithdrawalHandler) Callback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.noteReconcileFailure(c, fmt.Errorf("malformed callback payload: %w", err))
		c.JSON(http.StatusOK, callbackAck)
		return
	}

	event := service.CallbackEvent{
		ExternalReference: req.ExternalReference,
		Status:            req.Status,
		Success:           req.Success,
		TransactionID:     req.TransactionID,
		CheckoutRequestID: req.CheckoutRequestID,
		MerchantRequestID: req.MerchantRequestID,
	}

	if req.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			event.Timestamp = ts
		}
	}

	if req.Result != nil {
		event.Result = &service.CallbackResult{
			ResultCode:         req.Result.ResultCode,
			ResultDesc:         req.Result.ResultDesc,
			MpesaReceiptNumber: req.Result.MpesaReceiptNumber,
			Amount:             int64(math.Round(req.Result.Amount)),
			Phone:              rawString(req.Result.Phone),
			Name:               req.Result.Name,
			FirstName:          req.Result.FirstName,
			MiddleName:         req.Result.MiddleName,
			LastName:           req.Result.LastName,
		}
	}

	if _, err := h.withdrawals.Reconcile(c.Request.Context(), event); err != nil {
		h.noteReconcileFailure(c, err)
	}

	c.JSON(http.StatusOK, callbackAck)
}

// noteReconcileFailure records a reconciliation failure internally. The wire
// response stays a success ack either way.
func (h *WithdrawalHandler) noteReconcileFailure(c *gin.Context, err error) {
	log.Printf("callback reconciliation failed: %v", err)
	if txn := nrgin.Transaction(c); txn != nil {
		txn.NoticeError(err)
	}
}

// GetReceipt handles GET /receipt/:reference
func (h *WithdrawalHandler) GetReceipt(c *gin.Context) {
	receipt, err := h.withdrawals.GetReceipt(c.Request.Context(), c.Param("reference"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Receipt not found"})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "receipt": toReceiptResponse(receipt)})
}

// GetReceiptPDF handles GET /receipt/:reference/pdf
func (h *WithdrawalHandler) GetReceiptPDF(c *gin.Context) {
	receipt, err := h.withdrawals.GetReceipt(c.Request.Context(), c.Param("reference"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Receipt not found"})
			return
		}
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", receipt.Reference))

	if err := h.receipts.RenderPDF(receipt, c.Writer); err != nil {
		// Headers are already on the wire; nothing left but to log.
		log.Printf("failed to render receipt pdf %s: %v", receipt.Reference, err)
	}
}

// CheckWithdrawal handles GET /check-withdrawal/:phone
func (h *WithdrawalHandler) CheckWithdrawal(c *gin.Context) {
	history, err := h.withdrawals.CheckLastWithdrawal(c.Request.Context(), c.Param("phone"))
	if err != nil {
		respondError(c, err)
		return
	}

	if !history.HasPrevious {
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"has_previous": false,
			"message":      "No previous withdrawals found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"has_previous": true,
		"last_withdrawal": gin.H{
			"reference":   history.Last.Reference,
			"status":      string(history.Last.Status),
			"amount":      history.Last.Amount,
			"loan_amount": history.Last.LoanAmount,
			"timestamp":   history.Last.Timestamp.UTC().Format(time.RFC3339),
			"status_note": history.Last.StatusNote,
			"can_retry":   history.Last.CanRetry,
		},
		"total_withdrawals": history.TotalWithdrawals,
	})
}
