// Package cache is the key-value layer placed in front of the durable store.
// Entries carry a per-entity TTL and are invalidated explicitly on writes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Cache interface {
	// Get returns found=false on a miss; err is reserved for backend failures.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

func ModerationKey(taskID int64) string {
	return fmt.Sprintf("moderation:%d", taskID)
}

func AdvertisementKey(itemID int64) string {
	return fmt.Sprintf("advertisement:%d", itemID)
}

func GetJSON(ctx context.Context, c Cache, key string, dst interface{}) (bool, error) {
	raw, found, err := c.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}
