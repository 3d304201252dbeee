package redis

import (
	"context"

	"swiftpay/internal/domain"
)

// DeliveryGuardInterface defines the interface for callback deduplication.
type DeliveryGuardInterface interface {
	MarkDelivered(ctx context.Context, reference, transactionID string) (bool, error)
	Forget(ctx context.Context, reference, transactionID string) error
}

// ReceiptCacheInterface defines the interface for receipt caching.
type ReceiptCacheInterface interface {
	Get(ctx context.Context, reference string) (*domain.Receipt, error)
	Set(ctx context.Context, receipt *domain.Receipt) error
	Invalidate(ctx context.Context, reference string) error
}

// Ensure concrete types implement interfaces.
var (
	_ DeliveryGuardInterface = (*DeliveryGuard)(nil)
	_ ReceiptCacheInterface  = (*ReceiptCache)(nil)
)
