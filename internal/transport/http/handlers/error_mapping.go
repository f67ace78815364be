package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/infra/logger"
	"github.com/shubra2641/liceinc/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status, envelope code and message.
type ErrorCase struct {
	Err     error
	Status  int
	Code    string
	Message string
}

var licenseErrorCases = []ErrorCase{
	{Err: domain.ErrInvalidFormat, Status: http.StatusBadRequest, Code: CodeInvalidFormat},
	{Err: domain.ErrInvalidDomain, Status: http.StatusBadRequest, Code: CodeInvalidDomain},
	{Err: domain.ErrInvalidPurchaseCode, Status: http.StatusNotFound, Code: CodeInvalidPurchaseCode},
	{Err: domain.ErrLicenseNotFound, Status: http.StatusNotFound, Code: CodeLicenseNotFound, Message: "License not found"},
	{Err: domain.ErrLicenseInactive, Status: http.StatusForbidden, Code: CodeLicenseInactive},
	{Err: domain.ErrLicenseExpired, Status: http.StatusForbidden, Code: CodeLicenseExpired},
	{Err: domain.ErrDomainNotAuthorized, Status: http.StatusForbidden, Code: CodeDomainNotAuthorized},
	{Err: domain.ErrDomainLimitReached, Status: http.StatusConflict, Code: CodeDomainLimitReached},
	{Err: domain.ErrInvalidStatusTransition, Status: http.StatusConflict, Code: CodeInvalidTransition, Message: "License status transition is not allowed"},
	{Err: domain.ErrRemoteUnavailable, Status: http.StatusServiceUnavailable, Code: CodeRemoteUnavailable},
	{Err: domain.ErrRateLimited, Status: http.StatusTooManyRequests, Code: CodeRateLimited},
	{Err: usecase.ErrActorRequired, Status: http.StatusBadRequest, Code: CodeValidationFailed, Message: "Actor is required"},
}

// verdictCases are policy outcomes of POST /licenses/verify. They are answered with
// 200 and valid=false; the envelope code still names the failure.
var verdictCases = []ErrorCase{
	{Err: domain.ErrInvalidPurchaseCode, Code: CodeInvalidPurchaseCode},
	{Err: domain.ErrLicenseNotFound, Code: CodeLicenseNotFound},
	{Err: domain.ErrLicenseInactive, Code: CodeLicenseInactive},
	{Err: domain.ErrLicenseExpired, Code: CodeLicenseExpired},
	{Err: domain.ErrDomainNotAuthorized, Code: CodeDomainNotAuthorized},
	{Err: domain.ErrDomainLimitReached, Code: CodeDomainLimitReached},
}

func matchErrorCase(err error, cases []ErrorCase) (ErrorCase, bool) {
	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			return cs, true
		}
	}
	return ErrorCase{}, false
}

// RespondWithMappedError resolves the error against known cases. Anything unmapped is logged and becomes SYSTEM_ERROR.
func RespondWithMappedError(c *gin.Context, log *zap.Logger, err error, cases []ErrorCase) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	if cs, ok := matchErrorCase(err, cases); ok {
		message := cs.Message
		if message == "" {
			message = usecase.VerificationMessage(cs.Err)
		}
		respondError(c, cs.Status, cs.Code, message)
		return
	}

	_ = c.Error(err)
	logger.Scoped(c.Request.Context(), log).Error("unhandled request error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	respondError(c, http.StatusInternalServerError, CodeSystemError, usecase.VerificationMessage(domain.ErrSystem))
}
