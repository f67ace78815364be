package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appLogger "github.com/shubra2641/liceinc/internal/infra/logger"
)

var quietRoutes = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

// Logger emits one access log line per request. Client addresses and license keys are masked,
// health routes log at debug and client errors at warn.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()

		fields := []zap.Field{
			zap.String("trace_id", GetTraceID(c)),
			zap.String("request_id", GetRequestID(c)),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
		}
		if route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if key := c.Param("key"); key != "" {
			fields = append(fields, zap.String("license_key", appLogger.MaskString(key)))
		}
		if ua := c.Request.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}
		if actor, ok := GetAdminSubject(c); ok {
			fields = append(fields, zap.String("actor", actor))
		}
		if code := ErrorCode(c); code != "" {
			fields = append(fields, zap.String("code", code))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log.Log(accessLevel(route, status, len(c.Errors) > 0), "request completed", fields...)
	}
}

func accessLevel(route string, status int, failed bool) zapcore.Level {
	switch {
	case failed || status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	}
	if _, quiet := quietRoutes[route]; quiet {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
