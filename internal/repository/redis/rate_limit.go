package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/shubra2641/liceinc/internal/core/port"
)

const defaultRateLimitPrefix = "liceinc:ratelimit"

var errNonPositiveWindow = errors.New("window must be positive")

// SlidingWindowConfig configures the sorted-set backed limiter store.
type SlidingWindowConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// SlidingWindowStore keeps request timestamps per identifier in Redis sorted sets.
type SlidingWindowStore struct {
	client *red.Client
	cfg    SlidingWindowConfig
}

// NewSlidingWindowStore constructs the store.
func NewSlidingWindowStore(client *red.Client, cfg SlidingWindowConfig) *SlidingWindowStore {
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = defaultRateLimitPrefix
	}
	return &SlidingWindowStore{client: client, cfg: cfg}
}

var _ port.RateLimitStore = (*SlidingWindowStore)(nil)

// RecordAttempt adds the timestamp to the window and refreshes the key TTL.
func (s *SlidingWindowStore) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := s.key(identifier)
	nanos := at.UnixNano()

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, red.Z{Score: float64(nanos), Member: strconv.FormatInt(nanos, 10)})
	if s.cfg.TTL > 0 {
		pipe.Expire(ctx, key, s.cfg.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record attempt: %w", err)
	}
	return nil
}

// CountAttempts counts attempts inside (reference-window, reference].
func (s *SlidingWindowStore) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errNonPositiveWindow
	}
	lo, hi := scoreRange(window, reference)

	count, err := s.client.ZCount(ctx, s.key(identifier), lo, hi).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount: %w", err)
	}
	return int(count), nil
}

// TrimWindow drops attempts that fell out of the window.
func (s *SlidingWindowStore) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errNonPositiveWindow
	}
	lo, _ := scoreRange(window, reference)

	if err := s.client.ZRemRangeByScore(ctx, s.key(identifier), "-inf", "("+lo).Err(); err != nil {
		return fmt.Errorf("redis zremrangebyscore: %w", err)
	}
	return nil
}

// OldestAttempt returns the earliest attempt still inside the window.
func (s *SlidingWindowStore) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errNonPositiveWindow
	}
	lo, hi := scoreRange(window, reference)

	values, err := s.client.ZRangeByScore(ctx, s.key(identifier), &red.ZRangeBy{Min: lo, Max: hi, Count: 1}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis zrangebyscore: %w", err)
	}
	if len(values) == 0 {
		return time.Time{}, false, nil
	}

	nanos, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse attempt timestamp: %w", err)
	}
	return time.Unix(0, nanos).UTC(), true, nil
}

func (s *SlidingWindowStore) key(identifier string) string {
	return s.cfg.KeyPrefix + ":" + identifier
}

func scoreRange(window time.Duration, reference time.Time) (string, string) {
	lo := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)
	hi := strconv.FormatInt(reference.UnixNano(), 10)
	return lo, hi
}
