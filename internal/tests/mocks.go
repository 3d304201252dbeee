package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"swiftpay/internal/domain"
	"swiftpay/internal/gateway"
	"swiftpay/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK RECEIPT REPOSITORY
// ──────────────────────────────────────────────

// MockReceiptRepository is a mock implementation of ReceiptRepository.
type MockReceiptRepository struct {
	mu       sync.RWMutex
	receipts map[string]*domain.Receipt

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockReceiptRepository creates a new mock receipt repository.
func NewMockReceiptRepository() *MockReceiptRepository {
	return &MockReceiptRepository{
		receipts: make(map[string]*domain.Receipt),
	}
}

// AddReceipt adds a receipt to the mock repository.
func (m *MockReceiptRepository) AddReceipt(receipt *domain.Receipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[receipt.Reference] = receipt
}

func (m *MockReceiptRepository) Create(ctx context.Context, receipt *domain.Receipt) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *receipt
	m.receipts[receipt.Reference] = &copy
	return nil
}

func (m *MockReceiptRepository) GetByReference(ctx context.Context, reference string) (*domain.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	receipt, ok := m.receipts[reference]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *receipt
	return &copy, nil
}

func (m *MockReceiptRepository) Update(ctx context.Context, receipt *domain.Receipt) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.receipts[receipt.Reference]; !ok {
		return repository.ErrNotFound
	}
	copy := *receipt
	m.receipts[receipt.Reference] = &copy
	return nil
}

func (m *MockReceiptRepository) ListByPhone(ctx context.Context, phone string) ([]*domain.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Receipt
	for _, r := range m.receipts {
		if r.Phone == phone {
			copy := *r
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

// GetReceipt returns the stored receipt for test assertions.
func (m *MockReceiptRepository) GetReceipt(reference string) *domain.Receipt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.receipts[reference]
}

// Count returns the number of stored receipts.
func (m *MockReceiptRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.receipts)
}

// ──────────────────────────────────────────────
// MOCK STK GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a mock implementation of the STK gateway.
type MockGateway struct {
	mu sync.Mutex

	// Counters for verification
	InitiateCallCount int32

	// Scripted behavior
	Response *gateway.InitiateResponse
	Err      error

	// LastRequest records the most recent initiate request.
	LastRequest gateway.InitiateRequest
}

// NewMockGateway creates a mock gateway that acknowledges every push.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Response: &gateway.InitiateResponse{
			Success:           true,
			Status:            gateway.StatusInitiated,
			Message:           "STK push sent",
			TransactionID:     "T1",
			CheckoutRequestID: "CR1",
			MerchantRequestID: "MR1",
		},
	}
}

func (m *MockGateway) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResponse, error) {
	atomic.AddInt32(&m.InitiateCallCount, 1)
	m.mu.Lock()
	m.LastRequest = req
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	resp := *m.Response
	return &resp, nil
}

// ──────────────────────────────────────────────
// MOCK DELIVERY GUARD
// ──────────────────────────────────────────────

// MockDeliveryGuard is an in-memory callback deduplicator.
type MockDeliveryGuard struct {
	mu   sync.Mutex
	seen map[string]bool

	// Error injection
	Err error
}

// NewMockDeliveryGuard creates a new mock delivery guard.
func NewMockDeliveryGuard() *MockDeliveryGuard {
	return &MockDeliveryGuard{seen: make(map[string]bool)}
}

func (m *MockDeliveryGuard) MarkDelivered(ctx context.Context, reference, transactionID string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := reference + ":" + transactionID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *MockDeliveryGuard) Forget(ctx context.Context, reference, transactionID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, reference+":"+transactionID)
	return nil
}

// Delivered reports whether a delivery is currently recorded.
func (m *MockDeliveryGuard) Delivered(reference, transactionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[reference+":"+transactionID]
}
