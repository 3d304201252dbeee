package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeliveryTTL bounds how long a callback delivery is remembered. The provider
// retries delivery for at most a few hours.
const DeliveryTTL = 24 * time.Hour

// DeliveryGuard deduplicates provider callback deliveries in Redis.
type DeliveryGuard struct {
	client *redis.Client
}

// NewDeliveryGuard creates a new DeliveryGuard.
func NewDeliveryGuard(client *redis.Client) *DeliveryGuard {
	return &DeliveryGuard{client: client}
}

// MarkDelivered records a callback delivery keyed by reference and provider
// transaction id. Returns true on first delivery, false on a duplicate.
func (g *DeliveryGuard) MarkDelivered(ctx context.Context, reference, transactionID string) (bool, error) {
	key := fmt.Sprintf("callback:%s:%s", reference, transactionID)

	ok, err := g.client.SetNX(ctx, key, "1", DeliveryTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// Forget drops a recorded delivery so the provider's next redelivery is
// treated as first. Used when the delivery was marked but the receipt write
// failed, leaving redelivery as the only way to finish reconciling.
func (g *DeliveryGuard) Forget(ctx context.Context, reference, transactionID string) error {
	key := fmt.Sprintf("callback:%s:%s", reference, transactionID)
	return g.client.Del(ctx, key).Err()
}
