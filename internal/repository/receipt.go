package repository

import (
	"context"

	"swiftpay/internal/domain"
)

// ReceiptRepository defines the persistence operations for receipts.
// Storage is per-reference: concurrent writes to different references never
// interfere with each other.
type ReceiptRepository interface {
	// Create persists a new receipt.
	Create(ctx context.Context, receipt *domain.Receipt) error

	// GetByReference retrieves a receipt by its reference.
	GetByReference(ctx context.Context, reference string) (*domain.Receipt, error)

	// Update overwrites the receipt row identified by receipt.Reference.
	Update(ctx context.Context, receipt *domain.Receipt) error

	// ListByPhone returns all receipts for a canonical phone number,
	// ordered by timestamp descending.
	ListByPhone(ctx context.Context, phone string) ([]*domain.Receipt, error)
}
