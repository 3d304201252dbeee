package postgres

import (
	"context"
	"database/sql"
	"errors"

	"swiftpay/internal/domain"
	"swiftpay/internal/repository"
)

// ReceiptRepository is a PostgreSQL implementation of repository.ReceiptRepository.
type ReceiptRepository struct {
	q Querier
}

// NewReceiptRepository creates a new PostgreSQL receipt repository.
func NewReceiptRepository(db *sql.DB) *ReceiptRepository {
	return &ReceiptRepository{q: db}
}

// NewReceiptRepositoryWithTx creates a receipt repository using a transaction.
func NewReceiptRepositoryWithTx(tx *sql.Tx) *ReceiptRepository {
	return &ReceiptRepository{q: tx}
}

const receiptColumns = `
	reference, original_reference, transaction_id, checkout_request_id,
	merchant_request_id, transaction_code, amount, loan_amount, phone,
	customer_name, status, status_note, recorded_at, is_retry
`

// Create persists a new receipt.
func (r *ReceiptRepository) Create(ctx context.Context, receipt *domain.Receipt) error {
	query := `
		INSERT INTO receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.q.ExecContext(ctx, query,
		receipt.Reference,
		receipt.OriginalReference,
		receipt.TransactionID,
		receipt.CheckoutRequestID,
		receipt.MerchantRequestID,
		receipt.TransactionCode,
		receipt.Amount,
		receipt.LoanAmount,
		receipt.Phone,
		receipt.CustomerName,
		receipt.Status,
		receipt.StatusNote,
		receipt.Timestamp,
		receipt.IsRetry,
	)

	return err
}

// GetByReference retrieves a receipt by its reference.
func (r *ReceiptRepository) GetByReference(ctx context.Context, reference string) (*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE reference = $1`

	receipt, err := scanReceipt(r.q.QueryRowContext(ctx, query, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return receipt, nil
}

// Update overwrites the receipt row identified by receipt.Reference.
func (r *ReceiptRepository) Update(ctx context.Context, receipt *domain.Receipt) error {
	query := `
		UPDATE receipts SET
			original_reference = $2,
			transaction_id = $3,
			checkout_request_id = $4,
			merchant_request_id = $5,
			transaction_code = $6,
			amount = $7,
			loan_amount = $8,
			phone = $9,
			customer_name = $10,
			status = $11,
			status_note = $12,
			recorded_at = $13,
			is_retry = $14
		WHERE reference = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		receipt.Reference,
		receipt.OriginalReference,
		receipt.TransactionID,
		receipt.CheckoutRequestID,
		receipt.MerchantRequestID,
		receipt.TransactionCode,
		receipt.Amount,
		receipt.LoanAmount,
		receipt.Phone,
		receipt.CustomerName,
		receipt.Status,
		receipt.StatusNote,
		receipt.Timestamp,
		receipt.IsRetry,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListByPhone returns all receipts for a canonical phone number, most recent first.
func (r *ReceiptRepository) ListByPhone(ctx context.Context, phone string) ([]*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE phone = $1 ORDER BY recorded_at DESC`

	rows, err := r.q.QueryContext(ctx, query, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []*domain.Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}

	return receipts, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(s scanner) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := s.Scan(
		&receipt.Reference,
		&receipt.OriginalReference,
		&receipt.TransactionID,
		&receipt.CheckoutRequestID,
		&receipt.MerchantRequestID,
		&receipt.TransactionCode,
		&receipt.Amount,
		&receipt.LoanAmount,
		&receipt.Phone,
		&receipt.CustomerName,
		&receipt.Status,
		&receipt.StatusNote,
		&receipt.Timestamp,
		&receipt.IsRetry,
	)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}
