package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"swiftpay/internal/config"
)

// Provider error codes returned in structured error bodies.
const (
	ErrCodeRateLimit           = "RATE_LIMIT_EXCEEDED"
	ErrCodePersonalKYC         = "PERSONAL_KYC_VERIFICATION_REQUIRED"
	ErrCodeChannelKYC          = "CHANNEL_KYC_VERIFICATION_REQUIRED"
	ErrCodeInsufficientBalance = "INSUFFICIENT_SERVICE_BALANCE"
)

// StatusInitiated is the gateway status confirming the STK push was sent.
const StatusInitiated = "INITIATED"

// ErrAPIKeyNotSet is returned before any network call when the client has no
// API key configured.
var ErrAPIKeyNotSet = errors.New("gateway api key not set")

// Error is a transport-level gateway failure: an unreachable provider, a
// non-2xx response, or a malformed body. Business-level rejections
// (success=false in a 2xx body) are returned as an InitiateResponse instead.
type Error struct {
	Code       string // structured provider error code, may be empty
	Message    string
	Details    string // provider's details.message, may be empty
	StatusCode int    // HTTP status, 0 when the request never completed
	Provider   bool   // true when Message came from a parsed provider error body
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
	}
	return "gateway error: " + e.Message
}

// InitiateRequest contains the parameters for an STK push initiation.
type InitiateRequest struct {
	Amount       int64
	Phone        string // canonical 254... form
	Reference    string
	CustomerName string
}

// InitiateResponse is the gateway's acknowledgement of an initiation attempt.
type InitiateResponse struct {
	Success           bool   `json:"success"`
	Status            string `json:"status"`
	Message           string `json:"message"`
	Error             string `json:"error"`
	TransactionID     string `json:"transaction_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
	MerchantRequestID string `json:"merchant_request_id"`
}

// Initiated reports whether the gateway confirmed sending the STK push.
func (r *InitiateResponse) Initiated() bool {
	return r.Success && r.Status == StatusInitiated
}

// Client sends STK push initiations to the payment gateway.
type Client struct {
	cfg        config.GatewayConfig
	httpClient *http.Client
}

// NewClient creates a gateway client from configuration. The HTTP client
// carries the configured timeout; a timed-out call surfaces as *Error.
func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type initiatePayload struct {
	Amount            int64  `json:"amount"`
	PhoneNumber       string `json:"phone_number"`
	ChannelID         int    `json:"channel_id"`
	ExternalReference string `json:"external_reference"`
	CustomerName      string `json:"customer_name"`
	CallbackURL       string `json:"callback_url"`
}

type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Details   struct {
		Message string `json:"message"`
	} `json:"details"`
}

// Initiate sends a bearer-authenticated initiate request and returns the
// provider's raw acknowledgement. There is no automatic retry; the caller
// decides how to interpret failures.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	payload := initiatePayload{
		Amount:            req.Amount,
		PhoneNumber:       req.Phone,
		ChannelID:         c.cfg.ChannelID,
		ExternalReference: req.Reference,
		CustomerName:      req.CustomerName,
		CallbackURL:       c.cfg.CallbackBaseURL + "/callback",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/stk-initiate/", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Message: err.Error(), StatusCode: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		if err := json.Unmarshal(raw, &eb); err != nil || (eb.Error == "" && eb.ErrorCode == "") {
			return nil, &Error{
				Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
				StatusCode: resp.StatusCode,
			}
		}
		return nil, &Error{
			Code:       eb.ErrorCode,
			Message:    eb.Error,
			Details:    eb.Details.Message,
			StatusCode: resp.StatusCode,
			Provider:   true,
		}
	}

	var ack InitiateResponse
	if err := json.Unmarshal(raw, &ack); err != nil {
		return nil, &Error{Message: "malformed gateway response: " + err.Error(), StatusCode: resp.StatusCode}
	}

	return &ack, nil
}
