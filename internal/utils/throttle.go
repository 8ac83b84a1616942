package utils

import (
	"context" // Context for Redis operations
	"time"    // Window lengths

	"github.com/redis/go-redis/v9" // Redis client
)

// Hit increments a fixed-window counter and returns the count after the hit.
// The window starts with the first hit.
func Hit(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, error) {
	n, err := rdb.Incr(ctx, key).Result() // Count this hit
	if err != nil {
		return 0, err // Redis unavailable
	}
	if n == 1 {
		// First hit opens the window
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Hits returns the current count without incrementing it
func Hits(ctx context.Context, rdb *redis.Client, key string) (int64, error) {
	n, err := rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil // No hits in this window
	}
	return n, err
}

// ResetHits clears a counter
func ResetHits(ctx context.Context, rdb *redis.Client, key string) error {
	return rdb.Del(ctx, key).Err()
}
