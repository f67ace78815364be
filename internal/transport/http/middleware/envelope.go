package middleware

import "github.com/gin-gonic/gin"

const (
	codeUnauthorized = "UNAUTHORIZED"
	codeRateLimited  = "RATE_LIMITED"
	codeSystemError  = "SYSTEM_ERROR"
)

const errorCodeKey = "error_code"

// ErrorEnvelope matches the handlers error envelope.
type ErrorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// SetErrorCode records the envelope code of the response for metrics and access logs.
func SetErrorCode(c *gin.Context, code string) {
	if code != "" {
		c.Set(errorCodeKey, code)
	}
}

// ErrorCode returns the envelope code recorded for the response, if any.
func ErrorCode(c *gin.Context) string {
	return c.GetString(errorCodeKey)
}

func abortWithEnvelope(c *gin.Context, status int, code, message string) {
	SetErrorCode(c, code)
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Status:  "error",
		Message: message,
		Code:    code,
		TraceID: GetTraceID(c),
	})
}
