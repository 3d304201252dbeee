package tests

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"swiftpay/internal/domain"
	"swiftpay/internal/gateway"
	"swiftpay/internal/repository"
	"swiftpay/internal/service"
)

// ──────────────────────────────────────────────
// WITHDRAWAL RETRY
// ──────────────────────────────────────────────

func failedReceipt(reference string, status domain.Status) *domain.Receipt {
	return &domain.Receipt{
		Reference:    reference,
		Amount:       75,
		LoanAmount:   "80000",
		Phone:        "254712345678",
		CustomerName: "Jane Wanjiku",
		Status:       status,
		StatusNote:   "something went wrong",
		Timestamp:    time.Now().Add(-time.Hour),
	}
}

func TestRetry_UnknownReference(t *testing.T) {
	t.Parallel()

	svc := service.NewWithdrawalService(NewMockReceiptRepository(), NewMockGateway(), nil, nil)

	_, err := svc.Retry(context.Background(), "ORDER-404")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestRetry_NonRetryableStatuses(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.Status{domain.StatusPending, domain.StatusProcessing} {
		status := status
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()

			repo := NewMockReceiptRepository()
			repo.AddReceipt(failedReceipt("ORDER-1", status))
			gw := NewMockGateway()
			svc := service.NewWithdrawalService(repo, gw, nil, nil)

			_, err := svc.Retry(context.Background(), "ORDER-1")
			if !errors.Is(err, service.ErrNotRetryable) {
				t.Fatalf("expected ErrNotRetryable, got: %v", err)
			}

			var nre *service.NotRetryableError
			if !errors.As(err, &nre) {
				t.Fatal("expected NotRetryableError carrying the current status")
			}
			if nre.Status != status {
				t.Errorf("expected status %s in error, got %s", status, nre.Status)
			}
			if gw.InitiateCallCount != 0 {
				t.Error("non-retryable withdrawals must not reach the gateway")
			}
		})
	}
}

func TestRetry_FailedWithdrawal_CreatesFreshAttempt(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.Status{
		domain.StatusSTKFailed,
		domain.StatusError,
		domain.StatusCancelled,
	} {
		status := status
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()

			repo := NewMockReceiptRepository()
			repo.AddReceipt(failedReceipt("ORDER-1", status))
			gw := NewMockGateway()
			svc := service.NewWithdrawalService(repo, gw, nil, nil)

			result, err := svc.Retry(context.Background(), "ORDER-1")
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}

			if !strings.HasPrefix(result.Reference, "RETRY-") {
				t.Errorf("expected RETRY- reference, got %q", result.Reference)
			}

			attempt := repo.GetReceipt(result.Reference)
			if attempt == nil {
				t.Fatal("retry attempt must be persisted")
			}
			if !attempt.IsRetry {
				t.Error("retry attempt must be flagged")
			}
			if attempt.OriginalReference != "ORDER-1" {
				t.Errorf("expected link to original, got %q", attempt.OriginalReference)
			}
			if attempt.Status != domain.StatusPending {
				t.Errorf("expected status pending, got %s", attempt.Status)
			}
			if attempt.Amount != 75 || attempt.LoanAmount != "80000" {
				t.Error("retry must copy the original's amounts")
			}
			if attempt.CustomerName != "Jane Wanjiku" {
				t.Errorf("retry must copy the original's name, got %q", attempt.CustomerName)
			}

			// Original record stays as the historical failure.
			original := repo.GetReceipt("ORDER-1")
			if original.Status != status || original.StatusNote != "something went wrong" {
				t.Error("retry must not mutate the original receipt")
			}

			if gw.LastRequest.Phone != "254712345678" || gw.LastRequest.Amount != 75 {
				t.Error("gateway must receive the original's phone and amount")
			}
			if gw.LastRequest.Reference != result.Reference {
				t.Error("gateway must receive the fresh retry reference")
			}
			if gw.LastRequest.CustomerName != "Jane Wanjiku" {
				t.Errorf("expected stored name sent to gateway, got %q", gw.LastRequest.CustomerName)
			}
		})
	}
}

func TestRetry_PlaceholderName_SentAsGenericCustomer(t *testing.T) {
	t.Parallel()

	repo := NewMockReceiptRepository()
	seed := failedReceipt("ORDER-1", domain.StatusError)
	seed.CustomerName = "N/A"
	repo.AddReceipt(seed)
	gw := NewMockGateway()
	svc := service.NewWithdrawalService(repo, gw, nil, nil)

	if _, err := svc.Retry(context.Background(), "ORDER-1"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if gw.LastRequest.CustomerName != "Customer" {
		t.Errorf("placeholder name must not leak to the gateway, got %q", gw.LastRequest.CustomerName)
	}
}

func TestRetry_GatewayRejection_PersistsRetryFailure(t *testing.T) {
	t.Parallel()

	repo := NewMockReceiptRepository()
	repo.AddReceipt(failedReceipt("ORDER-1", domain.StatusCancelled))
	gw := NewMockGateway()
	gw.Response = &gateway.InitiateResponse{Success: false, Status: "FAILED", Error: "push rejected"}
	svc := service.NewWithdrawalService(repo, gw, nil, nil)

	_, err := svc.Retry(context.Background(), "ORDER-1")

	var pushErr *service.STKPushError
	if !errors.As(err, &pushErr) {
		t.Fatalf("expected STKPushError, got: %v", err)
	}

	attempt := repo.GetReceipt(pushErr.Receipt.Reference)
	if attempt == nil {
		t.Fatal("failed retry attempt must still be persisted")
	}
	if attempt.Status != domain.StatusSTKFailed {
		t.Errorf("expected status stk_failed, got %s", attempt.Status)
	}
	if !attempt.IsRetry || attempt.OriginalReference != "ORDER-1" {
		t.Error("failed retry attempt must keep its retry linkage")
	}
}
