package logger

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "liceinc"

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns the process-wide logger. Production emits JSON with ISO8601 timestamps;
// every other environment gets the colored development encoder.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if env == "production" {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "ts"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}

		lg, err = cfg.Build(zap.Fields(
			zap.String("service", serviceName),
			zap.String("env", env),
		))
	})

	return lg, err
}

// Scoped returns base enriched with the request id carried by ctx. A nil base yields a no-op logger.
func Scoped(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	if ctx == nil {
		return base
	}
	if id := requestIDFromContext(ctx); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}

func requestIDFromContext(ctx context.Context) string {
	if val, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return val
	}
	return ""
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// MaskIP keeps the network half of an address: two octets for IPv4 (including
// v4-mapped IPv6) and four groups for IPv6. Unparseable input is fully masked.
// Example: 192.168.1.100 -> 192.168.*.*
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "***"
	}
	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.*.*", v4[0], v4[1])
	}

	v6 := parsed.To16()
	groups := make([]string, 0, 4)
	for i := 0; i < 8; i += 2 {
		groups = append(groups, strconv.FormatUint(uint64(v6[i])<<8|uint64(v6[i+1]), 16))
	}
	return strings.Join(groups, ":") + ":*:*:*:*"
}

// MaskString shows the first and last 2 characters with *** in between.
// Example: "secret123" -> "se***23"
func MaskString(s string) string {
	if s == "" {
		return ""
	}

	length := len(s)
	if length <= 4 {
		return "***"
	}

	return s[:2] + "***" + s[length-2:]
}
