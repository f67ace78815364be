package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/shubra2641/liceinc/internal/core/port"
)

const defaultAttemptPrefix = "liceinc:attempts"

// AttemptCounter keeps fixed-window attempt counters in Redis.
type AttemptCounter struct {
	client *red.Client
	prefix string
}

// NewAttemptCounter constructs a counter helper.
func NewAttemptCounter(client *red.Client, keyPrefix string) *AttemptCounter {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultAttemptPrefix
	}
	return &AttemptCounter{client: client, prefix: prefix}
}

var _ port.AttemptCounter = (*AttemptCounter)(nil)

// Increment bumps the counter. The window starts with the first attempt; a counter found
// without a TTL gets one again so it can never block forever.
func (c *AttemptCounter) Increment(ctx context.Context, identifier string, window time.Duration) (int64, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}
	key := c.key(identifier)

	var (
		incr *red.IntCmd
		ttl  *red.DurationCmd
	)
	if _, err := c.client.Pipelined(ctx, func(pipe red.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	}); err != nil {
		return 0, fmt.Errorf("redis incr attempts: %w", err)
	}

	count := incr.Val()
	// TTL reports -1 for a key that exists without an expiry.
	if ttl.Val() == -1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("redis expire attempts: %w", err)
		}
	}
	return count, nil
}

func (c *AttemptCounter) key(identifier string) string {
	return c.prefix + ":" + identifier
}
