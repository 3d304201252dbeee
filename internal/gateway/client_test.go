package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"swiftpay/internal/config"
)

func testConfig(baseURL string) config.GatewayConfig {
	return config.GatewayConfig{
		APIKey:          "test-key",
		ChannelID:       1234,
		BaseURL:         baseURL,
		CallbackBaseURL: "https://example.test",
		Timeout:         5 * time.Second,
	}
}

func TestInitiate_SendsAuthenticatedPayload(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_ = json.NewEncoder(w).Encode(InitiateResponse{
			Success:           true,
			Status:            StatusInitiated,
			Message:           "STK push initiated",
			TransactionID:     "TXN-1",
			CheckoutRequestID: "ws_CO_1",
			MerchantRequestID: "mr_1",
		})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	ack, err := client.Initiate(context.Background(), InitiateRequest{
		Amount:       150,
		Phone:        "254712345678",
		Reference:    "ORDER-1",
		CustomerName: "Customer",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if gotPath != "/stk-initiate/" {
		t.Errorf("expected /stk-initiate/ path, got %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}
	if gotPayload["phone_number"] != "254712345678" {
		t.Errorf("expected phone_number in payload, got %v", gotPayload["phone_number"])
	}
	if gotPayload["channel_id"] != float64(1234) {
		t.Errorf("expected channel_id 1234, got %v", gotPayload["channel_id"])
	}
	if gotPayload["external_reference"] != "ORDER-1" {
		t.Errorf("expected external_reference, got %v", gotPayload["external_reference"])
	}
	if gotPayload["callback_url"] != "https://example.test/callback" {
		t.Errorf("expected derived callback_url, got %v", gotPayload["callback_url"])
	}

	if !ack.Initiated() {
		t.Error("expected acknowledgement to report initiated")
	}
	if ack.TransactionID != "TXN-1" || ack.CheckoutRequestID != "ws_CO_1" {
		t.Error("expected provider IDs parsed from response")
	}
}

func TestInitiate_StructuredErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Too many requests","error_code":"RATE_LIMIT_EXCEEDED","details":{"message":"Retry after 60 seconds"}}`))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.Initiate(context.Background(), InitiateRequest{Amount: 50, Phone: "254712345678", Reference: "ORDER-1"})

	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *Error, got: %v", err)
	}
	if !gwErr.Provider {
		t.Error("parsed provider body must set Provider")
	}
	if gwErr.Code != ErrCodeRateLimit {
		t.Errorf("expected rate limit code, got %q", gwErr.Code)
	}
	if gwErr.Details != "Retry after 60 seconds" {
		t.Errorf("expected details message, got %q", gwErr.Details)
	}
	if gwErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", gwErr.StatusCode)
	}
}

func TestInitiate_UnparseableErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>upstream unavailable</html>"))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.Initiate(context.Background(), InitiateRequest{Amount: 50, Phone: "254712345678", Reference: "ORDER-1"})

	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *Error, got: %v", err)
	}
	if gwErr.Provider {
		t.Error("unparseable body must not claim a provider message")
	}
	if gwErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", gwErr.StatusCode)
	}
}

func TestInitiate_BusinessRejectionIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(InitiateResponse{Success: false, Status: "FAILED", Error: "Channel disabled"})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	ack, err := client.Initiate(context.Background(), InitiateRequest{Amount: 50, Phone: "254712345678", Reference: "ORDER-1"})
	if err != nil {
		t.Fatalf("2xx rejection must surface via the response, got error: %v", err)
	}
	if ack.Initiated() {
		t.Error("rejection must not report initiated")
	}
	if ack.Error != "Channel disabled" {
		t.Errorf("expected provider error message, got %q", ack.Error)
	}
}

func TestInitiate_MissingAPIKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://unreachable.test")
	cfg.APIKey = ""
	client := NewClient(cfg)

	_, err := client.Initiate(context.Background(), InitiateRequest{Amount: 50, Phone: "254712345678", Reference: "ORDER-1"})
	if !errors.Is(err, ErrAPIKeyNotSet) {
		t.Fatalf("expected ErrAPIKeyNotSet, got: %v", err)
	}
}
