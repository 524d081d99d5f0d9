package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"
)

const defaultAttemptPrefix = "rbac:rate_limit"

// AttemptCounter counts attempts per key in fixed windows that start on the first hit.
type AttemptCounter struct {
	client *red.Client
	prefix string
}

// NewAttemptCounter constructs a counter storing keys under keyPrefix.
func NewAttemptCounter(client *red.Client, keyPrefix string) *AttemptCounter {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultAttemptPrefix
	}
	return &AttemptCounter{client: client, prefix: prefix}
}

// Hit records one attempt and returns the attempts in the current window
// together with the time left until the window resets.
func (c *AttemptCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		return 0, 0, fmt.Errorf("window must be positive")
	}

	k := c.key(key)
	count, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		if err := c.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis pexpire: %w", err)
		}
		return count, window, nil
	}

	ttl, err := c.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis pttl: %w", err)
	}
	// A key without expiry is left over from a failed PEXPIRE; restart its window.
	if ttl < 0 {
		if err := c.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis pexpire: %w", err)
		}
		ttl = window
	}
	return count, ttl, nil
}

func (c *AttemptCounter) key(key string) string {
	return fmt.Sprintf("%s:%s", c.prefix, key)
}
