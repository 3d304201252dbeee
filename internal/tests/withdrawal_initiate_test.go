package tests

import (
	"context"
	"errors"
	"strings"
	"testing"

	"swiftpay/internal/domain"
	"swiftpay/internal/gateway"
	"swiftpay/internal/service"
)

// ──────────────────────────────────────────────
// WITHDRAWAL INITIATION
// ──────────────────────────────────────────────

func TestInitiate_ValidRequest_StoresPendingReceipt(t *testing.T) {
	t.Parallel()

	repo := NewMockReceiptRepository()
	gw := NewMockGateway()
	svc := service.NewWithdrawalService(repo, gw, nil, nil)

	result, err := svc.Initiate(context.Background(), service.InitiateRequest{
		Phone:      "0712345678",
		Amount:     50,
		LoanAmount: "50000",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if result.Reference == "" || !strings.HasPrefix(result.Reference, "ORDER-") {
		t.Errorf("expected ORDER- reference, got %q", result.Reference)
	}

	stored := repo.GetReceipt(result.Reference)
	if stored == nil {
		t.Fatal("expected receipt to be stored")
	}
	if stored.Status != domain.StatusPending {
		t.Errorf("expected status pending, got %s", stored.Status)
	}
	if stored.Amount != 50 {
		t.Errorf("expected amount 50, got %d", stored.Amount)
	}
	if stored.Phone != "254712345678" {
		t.Errorf("expected normalized phone, got %s", stored.Phone)
	}
	if stored.TransactionID != "T1" {
		t.Errorf("expected transaction id from gateway, got %q", stored.TransactionID)
	}
	if stored.IsRetry {
		t.Error("first attempt must not be flagged as retry")
	}

	if gw.LastRequest.Phone != "254712345678" {
		t.Errorf("gateway must receive the canonical phone, got %s", gw.LastRequest.Phone)
	}
	if gw.LastRequest.CustomerName != "Customer" {
		t.Errorf("expected gateway customer name Customer, got %q", gw.LastRequest.CustomerName)
	}
}

func TestInitiate_InvalidInput_NoReceiptCreated(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		phone   string
		amount  int64
		wantErr error
	}{
		{"bad phone", "12345", 50, service.ErrInvalidPhoneFormat},
		{"zero amount", "0712345678", 0, service.ErrInvalidAmount},
		{"negative amount", "0712345678", -5, service.ErrInvalidAmount},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := NewMockReceiptRepository()
			gw := NewMockGateway()
			svc := service.NewWithdrawalService(repo, gw, nil, nil)

			_, err := svc.Initiate(context.Background(), service.InitiateRequest{
				Phone:  tc.phone,
				Amount: tc.amount,
			})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got: %v", tc.wantErr, err)
			}
			if repo.Count() != 0 {
				t.Error("validation failures must not create receipts")
			}
			if gw.InitiateCallCount != 0 {
				t.Error("validation failures must not reach the gateway")
			}
		})
	}
}

func TestInitiate_DefaultLoanAmount(t *testing.T) {
	t.Parallel()

	repo := NewMockReceiptRepository()
	svc := service.NewWithdrawalService(repo, NewMockGateway(), nil, nil)

	result, err := svc.Initiate(context.Background(), service.InitiateRequest{
		Phone:  "0712345678",
		Amount: 50,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if got := repo.GetReceipt(result.Reference).LoanAmount; got != "50000" {
		t.Errorf("expected default loan amount 50000, got %q", got)
	}
}

func TestInitiate_GatewayRejection_StoresSTKFailedReceipt(t *testing.T) {
	t.Parallel()

	repo := NewMockReceiptRepository()
	gw := NewMockGateway()
	gw.Response = &gateway.InitiateResponse{
		Success: false,
		Status:  "FAILED",
		Error:   "Channel float too low",
	}
	svc := service.NewWithdrawalService(repo, gw, nil, nil)

	_, err := svc.Initiate(context.Background(), service.InitiateRequest{
		Phone:  "0712345678",
		Amount: 50,
	})

	var pushErr *service.STKPushError
	if !errors.As(err, &pushErr) {
		t.Fatalf("expected STKPushError, got: %v", err)
	}
	if pushErr.Transport {
		t.Error("business rejection must not be flagged as transport failure")
	}
	if pushErr.Message != "Channel float too low" {
		t.Errorf("expected gateway error message, got %q", pushErr.Message)
	}

	stored := repo.GetReceipt(pushErr.Receipt.Reference)
	if stored == nil {
		t.Fatal("rejection receipt must be persisted")
	}
	if stored.Status != domain.StatusSTKFailed {
		t.Errorf("expected status stk_failed, got %s", stored.Status)
	}
	if stored.StatusNote != "Channel float too low" {
		t.Errorf("expected gateway error as status note, got %q", stored.StatusNote)
	}
}

func TestInitiate_GatewayRejection_GenericFallbackNote(t *testing.T) {
	t.Parallel()

	repo := NewMockReceiptRepository()
	gw := NewMockGateway()
	gw.Response = &gateway.InitiateResponse{Success: false, Status: "FAILED"}
	svc := service.NewWithdrawalService(repo, gw, nil, nil)

	_, err := svc.Initiate(context.Background(), service.InitiateRequest{
		Phone:  "0712345678",
		Amount: 50,
	})

	var pushErr *service.STKPushError
	if !errors.As(err, &pushErr) {
		t.Fatalf("expected STKPushError, got: %v", err)
	}
	if !strings.Contains(pushErr.Receipt.StatusNote, "STK push failed to send") {
		t.Errorf("expected fallback status note, got %q", pushErr.Receipt.StatusNote)
	}
}

func TestInitiate_TransportFailure_StoresErrorReceipt(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		err      error
		wantNote string
	}{
		{
			"rate limited with details",
			&gateway.Error{Code: gateway.ErrCodeRateLimit, Message: "too many requests", Details: "Retry after 60s", StatusCode: 429, Provider: true},
			"Retry after 60s",
		},
		{
			"rate limited without details",
			&gateway.Error{Code: gateway.ErrCodeRateLimit, Message: "too many requests", StatusCode: 429, Provider: true},
			"Rate limit exceeded. Please try again later.",
		},
		{
			"personal kyc required",
			&gateway.Error{Code: gateway.ErrCodePersonalKYC, Message: "kyc", StatusCode: 403, Provider: true},
			"Account verification required. Please contact support.",
		},
		{
			"channel kyc required",
			&gateway.Error{Code: gateway.ErrCodeChannelKYC, Message: "kyc", StatusCode: 403, Provider: true},
			"Channel verification required. Please contact support.",
		},
		{
			"insufficient service balance",
			&gateway.Error{Code: gateway.ErrCodeInsufficientBalance, Message: "balance", StatusCode: 402, Provider: true},
			"Service temporarily unavailable. Please try again later.",
		},
		{
			"unknown code with provider message",
			&gateway.Error{Code: "SOMETHING_ELSE", Message: "channel disabled", StatusCode: 400, Provider: true},
			"channel disabled",
		},
		{
			"timeout",
			&gateway.Error{Message: "context deadline exceeded"},
			"System error occurred. Please try again later.",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := NewMockReceiptRepository()
			gw := NewMockGateway()
			gw.Err = tc.err
			svc := service.NewWithdrawalService(repo, gw, nil, nil)

			_, err := svc.Initiate(context.Background(), service.InitiateRequest{
				Phone:  "0712345678",
				Amount: 50,
			})

			var pushErr *service.STKPushError
			if !errors.As(err, &pushErr) {
				t.Fatalf("expected STKPushError, got: %v", err)
			}
			if !pushErr.Transport {
				t.Error("gateway failure must be flagged as transport failure")
			}

			stored := repo.GetReceipt(pushErr.Receipt.Reference)
			if stored == nil {
				t.Fatal("error receipt must be persisted")
			}
			if stored.Status != domain.StatusError {
				t.Errorf("expected status error, got %s", stored.Status)
			}
			if stored.StatusNote != tc.wantNote {
				t.Errorf("expected note %q, got %q", tc.wantNote, stored.StatusNote)
			}
		})
	}
}

func TestInitiate_MissingAPIKey_NothingPersisted(t *testing.T) {
	t.Parallel()

	repo := NewMockReceiptRepository()
	gw := NewMockGateway()
	gw.Err = gateway.ErrAPIKeyNotSet
	svc := service.NewWithdrawalService(repo, gw, nil, nil)

	_, err := svc.Initiate(context.Background(), service.InitiateRequest{
		Phone:  "0712345678",
		Amount: 50,
	})
	if !errors.Is(err, service.ErrGatewayNotConfigured) {
		t.Fatalf("expected ErrGatewayNotConfigured, got: %v", err)
	}
	if repo.Count() != 0 {
		t.Error("configuration errors must not create receipts")
	}
}
