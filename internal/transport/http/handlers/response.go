package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shubra2641/liceinc/internal/transport/http/middleware"
)

// Envelope codes returned to callers.
const (
	CodeInvalidFormat       = "INVALID_FORMAT"
	CodeInvalidPurchaseCode = "INVALID_PURCHASE_CODE"
	CodeLicenseNotFound     = "LICENSE_NOT_FOUND"
	CodeLicenseInactive     = "LICENSE_INACTIVE"
	CodeLicenseExpired      = "LICENSE_EXPIRED"
	CodeInvalidDomain       = "INVALID_DOMAIN"
	CodeDomainNotAuthorized = "DOMAIN_NOT_AUTHORIZED"
	CodeDomainLimitReached  = "DOMAIN_LIMIT_REACHED"
	CodeRemoteUnavailable   = "REMOTE_UNAVAILABLE"
	CodeInvalidTransition   = "INVALID_STATUS_TRANSITION"
	CodeRateLimited         = "RATE_LIMITED"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeSystemError         = "SYSTEM_ERROR"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Envelope is the uniform response body of every license endpoint.
type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Status: statusSuccess, Data: data})
}

func respondError(c *gin.Context, status int, code, message string) {
	middleware.SetErrorCode(c, code)
	c.JSON(status, Envelope{
		Status:  statusError,
		Message: message,
		Code:    code,
		TraceID: traceID(c),
	})
}

// respondVerdict answers a negative verification with 200 and the failure code.
func respondVerdict(c *gin.Context, code, message string, data any) {
	middleware.SetErrorCode(c, code)
	c.JSON(http.StatusOK, Envelope{
		Status:  statusError,
		Data:    data,
		Message: message,
		Code:    code,
		TraceID: traceID(c),
	})
}

var timeNow = func() time.Time { return time.Now().UTC() }

func respondValidationError(c *gin.Context, err error) {
	_ = c.Error(err)
	if domainValidationFailed(err) {
		respondError(c, http.StatusBadRequest, CodeInvalidDomain, "Invalid domain")
		return
	}
	respondError(c, http.StatusBadRequest, CodeValidationFailed, "Request validation failed")
}

func traceID(c *gin.Context) string {
	id, _ := c.Get("trace_id")
	s, _ := id.(string)
	return s
}
