package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shubra2641/liceinc/internal/core/domain"
)

const (
	// TraceIDHeader carries the correlation id echoed in every error envelope.
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the gin key holding the correlation id.
	TraceIDKey = "trace_id"
	// AdminSubjectKey is the gin key holding the authenticated operator.
	AdminSubjectKey = "admin_subject"

	requestMetaKey = "request_meta"
)

// EnrichContext assigns the correlation id and captures the caller metadata that
// verification logs record. Caller-supplied ids are kept only when they are safe to log.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if !validRequestID(traceID) {
			traceID = uuid.NewString()
		}
		setTraceID(c, traceID)

		c.Set(requestMetaKey, domain.RequestMeta{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Next()
	}
}

func setTraceID(c *gin.Context, id string) {
	c.Set(TraceIDKey, id)
	c.Header(TraceIDHeader, id)
}

// GetTraceID returns the correlation id of the request.
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}

// RequestMeta returns the caller network metadata recorded in verification logs.
func RequestMeta(c *gin.Context) domain.RequestMeta {
	if v, ok := c.Get(requestMetaKey); ok {
		if meta, ok := v.(domain.RequestMeta); ok {
			return meta
		}
	}
	return domain.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
