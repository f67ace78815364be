package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
	"github.com/shubra2641/liceinc/internal/repository"
)

const defaultVerificationCachePrefix = "liceinc:license"

// VerificationCache stores license snapshots keyed by hashed purchase code or license key.
type VerificationCache struct {
	client *red.Client
	prefix string
}

// NewVerificationCache constructs the cache helper.
func NewVerificationCache(client *red.Client, keyPrefix string) *VerificationCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultVerificationCachePrefix
	}
	return &VerificationCache{client: client, prefix: prefix}
}

var _ port.VerificationCache = (*VerificationCache)(nil)

// GetLicense returns the cached snapshot or repository.ErrNotFound on a miss.
func (c *VerificationCache) GetLicense(ctx context.Context, codeHash string) (*domain.License, error) {
	key := c.key(codeHash)
	if key == "" {
		return nil, repository.ErrNotFound
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get license snapshot: %w", err)
	}

	var license domain.License
	if err := json.Unmarshal(payload, &license); err != nil {
		// A corrupt snapshot is treated as a miss and evicted.
		_ = c.client.Del(ctx, key).Err()
		return nil, repository.ErrNotFound
	}
	return &license, nil
}

// SetLicense stores a snapshot with the supplied TTL.
func (c *VerificationCache) SetLicense(ctx context.Context, codeHash string, license domain.License, ttl time.Duration) error {
	key := c.key(codeHash)
	if key == "" {
		return fmt.Errorf("code hash is required")
	}
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(license)
	if err != nil {
		return fmt.Errorf("marshal license snapshot: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set license snapshot: %w", err)
	}
	return nil
}

// Invalidate drops every supplied snapshot key.
func (c *VerificationCache) Invalidate(ctx context.Context, codeHashes ...string) error {
	keys := make([]string, 0, len(codeHashes))
	for _, hash := range codeHashes {
		if key := c.key(hash); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del license snapshots: %w", err)
	}
	return nil
}

func (c *VerificationCache) key(codeHash string) string {
	trimmed := strings.TrimSpace(codeHash)
	if trimmed == "" {
		return ""
	}
	return c.prefix + ":" + trimmed
}
