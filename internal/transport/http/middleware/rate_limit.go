package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/port"
)

// IdentifierFunc extracts the value a rule is scoped by. Returning false skips the rule.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule is a sliding-window budget of Limit requests per Window for each identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces sliding-window request limits in front of the public license endpoints.
// Store failures let the request through.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// windowState is one rule's view of its window at the time of the request.
type windowState struct {
	rule      string
	limit     int
	used      int
	resetAt   time.Time
	exhausted bool
}

func (w windowState) remaining() int {
	return max(w.limit-w.used, 0)
}

func (w windowState) retryAfter(now time.Time) int {
	return max(int(math.Ceil(w.resetAt.Sub(now).Seconds())), 0)
}

// tighter reports whether w should be advertised over other.
func (w windowState) tighter(other windowState) bool {
	if w.exhausted != other.exhausted {
		return w.exhausted
	}
	if w.remaining() != other.remaining() {
		return w.remaining() < other.remaining()
	}
	return w.resetAt.Before(other.resetAt)
}

// RateLimitedEnvelope is the error envelope returned when a limit is exceeded.
type RateLimitedEnvelope struct {
	ErrorEnvelope
	RetryAfter int `json:"retry_after"`
}

// NewRateLimiter builds a limiter over the given window store.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a rule by the caller address.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// ParamIdentifier scopes a rule by a route parameter such as the license key. Routes
// without the parameter are not counted.
func ParamIdentifier(name string) IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		value := strings.TrimSpace(c.Param(name))
		return value, value != ""
	}
}

// RateLimit returns a Gin middleware enforcing every applicable rule. The first exhausted
// rule rejects the request; otherwise the tightest window is advertised in headers.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var advertised *windowState

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok {
				continue
			}

			state, err := rl.consume(c.Request.Context(), rule, rule.Name+":"+identifier, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed, allowing request",
					zap.String("rule", rule.Name),
					zap.Error(err),
				)
				continue
			}

			if state.exhausted {
				rl.setHeaders(c, state, now)
				rl.reject(c, state, now)
				return
			}
			if advertised == nil || state.tighter(*advertised) {
				advertised = &state
			}
		}

		if advertised != nil {
			rl.setHeaders(c, *advertised, now)
		}
		c.Next()
	}
}

// consume counts the window for key and records the request when budget remains.
func (rl *RateLimiter) consume(ctx context.Context, rule RateLimitRule, key string, now time.Time) (windowState, error) {
	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return windowState{}, err
	}
	used, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return windowState{}, err
	}
	oldest, found, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return windowState{}, err
	}

	state := windowState{
		rule:    rule.Name,
		limit:   rule.Limit,
		used:    used,
		resetAt: now.Add(rule.Window),
	}
	if found {
		state.resetAt = oldest.Add(rule.Window)
	}

	if used >= rule.Limit {
		state.exhausted = true
		return state, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return windowState{}, err
	}
	state.used++
	return state, nil
}

func (rl *RateLimiter) setHeaders(c *gin.Context, state windowState, now time.Time) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(state.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(state.remaining()))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(state.resetAt.Unix(), 10))
	if state.exhausted {
		h.Set("Retry-After", strconv.Itoa(state.retryAfter(now)))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, state windowState, now time.Time) {
	retry := state.retryAfter(now)

	rl.logger.Info("request rate limited",
		zap.String("rule", state.rule),
		zap.String("route", c.FullPath()),
		zap.Int("retry_after", retry),
	)

	SetErrorCode(c, codeRateLimited)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitedEnvelope{
		ErrorEnvelope: ErrorEnvelope{
			Status:  "error",
			Message: fmt.Sprintf("Too many requests. Try again in %d seconds.", retry),
			Code:    codeRateLimited,
			TraceID: GetTraceID(c),
		},
		RetryAfter: retry,
	})
}
