package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/port"
)

const (
	ActionVerify   = "verify"
	ActionActivate = "activate"
)

// AttemptLimit bounds how many attempts an IP may make for an action within a window.
type AttemptLimit struct {
	Max    int64
	Window time.Duration
}

// AttemptGuard applies per-IP attempt limits backed by TTL counters. Counter failures allow the attempt.
type AttemptGuard struct {
	counter port.AttemptCounter
	limits  map[string]AttemptLimit
	logger  *zap.Logger
}

// NewAttemptGuard constructs a guard with per-action limits.
func NewAttemptGuard(counter port.AttemptCounter, limits map[string]AttemptLimit, logger *zap.Logger) *AttemptGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttemptGuard{counter: counter, limits: limits, logger: logger}
}

// Allow records the attempt and reports whether it is within the configured limit.
func (g *AttemptGuard) Allow(ctx context.Context, action, ip string) bool {
	if g == nil || g.counter == nil {
		return true
	}
	ip = strings.TrimSpace(ip)
	limit, ok := g.limits[action]
	if ip == "" || !ok || limit.Max <= 0 || limit.Window <= 0 {
		return true
	}

	count, err := g.counter.Increment(ctx, action+":"+ip, limit.Window)
	if err != nil {
		g.logger.Warn("attempt counter unavailable", zap.String("action", action), zap.Error(err))
		return true
	}
	return count <= limit.Max
}
