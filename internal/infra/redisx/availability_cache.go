package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketstock/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache keeps short-lived catalog availability snapshots.
// Writers invalidate after commit; the TTL bounds staleness if an invalidation is lost.
type AvailabilityCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewAvailabilityCache(rdb redis.Cmdable, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{rdb: rdb, ttl: ttl}
}

func (c *AvailabilityCache) Get(ctx context.Context, productID int64) (model.Availability, bool, error) {
	b, err := c.rdb.Get(ctx, availabilityKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Availability{}, false, nil
	}
	if err != nil {
		return model.Availability{}, false, err
	}

	var a model.Availability
	if err := json.Unmarshal(b, &a); err != nil {
		return model.Availability{}, false, fmt.Errorf("decode availability: %w", err)
	}
	return a, true, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, a model.Availability) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, availabilityKey(a.ProductID), b, c.ttl).Err()
}

func (c *AvailabilityCache) Invalidate(ctx context.Context, productIDs ...int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, availabilityKey(id))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
