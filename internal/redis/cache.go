package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"swiftpay/internal/domain"
)

// ReceiptCacheTTL is short: a pending receipt can change the moment the
// provider calls back.
const ReceiptCacheTTL = 30 * time.Second

const receiptCachePrefix = "cache:receipt:"

// ReceiptCache caches receipt lookups in Redis.
type ReceiptCache struct {
	client *redis.Client
}

// NewReceiptCache creates a new ReceiptCache.
func NewReceiptCache(client *redis.Client) *ReceiptCache {
	return &ReceiptCache{client: client}
}

// Get retrieves a receipt from cache. Returns nil, nil on a miss.
func (c *ReceiptCache) Get(ctx context.Context, reference string) (*domain.Receipt, error) {
	data, err := c.client.Get(ctx, receiptCachePrefix+reference).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var receipt domain.Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Set stores a receipt in cache.
func (c *ReceiptCache) Set(ctx context.Context, receipt *domain.Receipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, receiptCachePrefix+receipt.Reference, data, ReceiptCacheTTL).Err()
}

// Invalidate removes a receipt from cache.
func (c *ReceiptCache) Invalidate(ctx context.Context, reference string) error {
	return c.client.Del(ctx, receiptCachePrefix+reference).Err()
}
