package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/infra/validation"
	"github.com/shubra2641/liceinc/internal/transport/http/middleware"
	"github.com/shubra2641/liceinc/internal/usecase"
)

// LicenseVerifier verifies purchase codes and license keys.
type LicenseVerifier interface {
	VerifyLicense(ctx context.Context, check usecase.LicenseCheck) (usecase.LicenseVerification, error)
	VerifyPurchase(ctx context.Context, rawCode string, productID, userID *int64, meta domain.RequestMeta) (usecase.PurchaseVerification, error)
}

// DomainManager binds and unbinds deployment domains.
type DomainManager interface {
	ActivateByKey(ctx context.Context, licenseKey, rawDomain string, activationContext map[string]any, meta domain.RequestMeta) (*domain.ActivationResult, error)
	DeactivateByKey(ctx context.Context, licenseKey, rawDomain, reason string) (bool, error)
}

// LicenseAdministrator exposes operator-only license operations.
type LicenseAdministrator interface {
	Get(ctx context.Context, licenseKey string) (*usecase.LicenseDetails, error)
	ChangeStatus(ctx context.Context, input usecase.StatusChangeInput) (*domain.License, error)
}

// LicenseHandler serves the license verification and activation endpoints.
type LicenseHandler struct {
	verifier LicenseVerifier
	domains  DomainManager
	admin    LicenseAdministrator
	logger   *zap.Logger
}

// NewLicenseHandler constructs the handler.
func NewLicenseHandler(verifier LicenseVerifier, domains DomainManager, admin LicenseAdministrator, logger *zap.Logger) *LicenseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LicenseHandler{verifier: verifier, domains: domains, admin: admin, logger: logger}
}

// RegisterPublicRoutes mounts the caller-facing endpoints.
func (h *LicenseHandler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/verify", h.Verify)
	rg.POST("/purchase-codes/verify", h.VerifyPurchaseCode)
	rg.POST("/:key/domains", h.ActivateDomain)
	rg.DELETE("/:key/domains/:domain", h.DeactivateDomain)
}

// RegisterAdminRoutes mounts the operator endpoints. Callers attach authentication.
func (h *LicenseHandler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/:key", h.Get)
	rg.POST("/:key/status", h.ChangeStatus)
}

// Verify validates a purchase code or license key, optionally for a domain.
func (h *LicenseHandler) Verify(c *gin.Context) {
	var req VerifyLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	source := domain.VerificationSource(req.Source)
	if source == "" {
		source = domain.SourceAPI
	}

	result, err := h.verifier.VerifyLicense(c.Request.Context(), usecase.LicenseCheck{
		Code:              req.PurchaseCode,
		Domain:            req.Domain,
		Activate:          req.Activate,
		ActivationContext: req.Context,
		Source:            source,
		Meta:              middleware.RequestMeta(c),
	})
	if err != nil {
		RespondWithMappedError(c, h.logger, err, nil)
		return
	}
	if !result.Valid {
		cs, ok := matchErrorCase(result.Err, verdictCases)
		if !ok {
			RespondWithMappedError(c, h.logger, result.Err, licenseErrorCases)
			return
		}
		message := result.Message
		if message == "" {
			message = usecase.VerificationMessage(cs.Err)
		}
		respondVerdict(c, cs.Code, message, VerifyLicenseResponse{
			Valid:   false,
			Message: message,
			Source:  string(result.Source),
			License: result.License,
		})
		return
	}

	respondData(c, http.StatusOK, VerifyLicenseResponse{
		Valid:      true,
		Message:    result.Message,
		Source:     string(result.Source),
		License:    result.License,
		Activation: newActivationResponse(result.Activation),
	})
}

// VerifyPurchaseCode runs the local-then-marketplace lookup used by the install wizard.
func (h *LicenseHandler) VerifyPurchaseCode(c *gin.Context) {
	var req VerifyPurchaseCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	outcome, err := h.verifier.VerifyPurchase(c.Request.Context(), req.PurchaseCode, req.ProductID, req.UserID, middleware.RequestMeta(c))
	if err != nil {
		RespondWithMappedError(c, h.logger, err, nil)
		return
	}
	if !outcome.Success {
		RespondWithMappedError(c, h.logger, outcome.Err, licenseErrorCases)
		return
	}

	resp := VerifyPurchaseCodeResponse{Source: string(outcome.Source)}
	if outcome.License != nil {
		view := domain.NewLicenseView(*outcome.License, timeNow())
		resp.License = &view
	}
	if sale := outcome.Sale; sale != nil {
		resp.Sale = &SaleResponse{
			ItemID:         sale.ItemID,
			ItemName:       sale.ItemName,
			Buyer:          sale.Buyer,
			License:        sale.LicenseLabel,
			SoldAt:         sale.SoldAt,
			SupportedUntil: sale.SupportedUntil,
		}
	}
	respondData(c, http.StatusOK, resp)
}

// ActivateDomain binds a domain to the license identified by key.
func (h *LicenseHandler) ActivateDomain(c *gin.Context) {
	var req ActivateDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	result, err := h.domains.ActivateByKey(c.Request.Context(), c.Param("key"), req.Domain, req.Context, middleware.RequestMeta(c))
	if err != nil {
		RespondWithMappedError(c, h.logger, err, licenseErrorCases)
		return
	}

	status := http.StatusCreated
	if result.Reactivated || result.DevelopmentHost {
		status = http.StatusOK
	}
	respondData(c, status, newActivationResponse(result))
}

// DeactivateDomain switches a binding off. Unknown bindings are reported as not deactivated.
func (h *LicenseHandler) DeactivateDomain(c *gin.Context) {
	host := c.Param("domain")
	changed, err := h.domains.DeactivateByKey(c.Request.Context(), c.Param("key"), host, strings.TrimSpace(c.Query("reason")))
	if err != nil {
		RespondWithMappedError(c, h.logger, err, licenseErrorCases)
		return
	}
	respondData(c, http.StatusOK, DeactivateDomainResponse{Domain: domain.CanonicalDomain(host), Deactivated: changed})
}

// Get returns the license view with lifecycle information and its domains.
func (h *LicenseHandler) Get(c *gin.Context) {
	details, err := h.admin.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		RespondWithMappedError(c, h.logger, err, licenseErrorCases)
		return
	}
	respondData(c, http.StatusOK, newLicenseDetailsResponse(details))
}

// ChangeStatus applies an administrative lifecycle transition.
func (h *LicenseHandler) ChangeStatus(c *gin.Context) {
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	subject, _ := middleware.GetAdminSubject(c)
	reason := strings.TrimSpace(req.Reason)
	if subject != "" {
		reason = strings.TrimSpace(reason + " (by " + subject + ")")
	}

	license, err := h.admin.ChangeStatus(c.Request.Context(), usecase.StatusChangeInput{
		LicenseKey: c.Param("key"),
		Status:     domain.LicenseStatus(req.Status),
		Actor:      domain.ActorAdmin,
		Reason:     reason,
	})
	if err != nil {
		RespondWithMappedError(c, h.logger, err, licenseErrorCases)
		return
	}

	h.logger.Info("license status changed",
		zap.Int64("license_id", license.ID),
		zap.String("status", string(license.Status)),
		zap.String("actor", subject),
	)
	respondData(c, http.StatusOK, domain.NewLicenseView(*license, timeNow()))
}

func domainValidationFailed(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() == validation.LicenseDomainTag {
			return true
		}
	}
	return false
}
