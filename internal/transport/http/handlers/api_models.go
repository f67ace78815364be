package handlers

import (
	"time"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/usecase"
)

// VerifyLicenseRequest is the payload of POST /licenses/verify.
type VerifyLicenseRequest struct {
	PurchaseCode string         `json:"purchase_code" binding:"required,max=100"`
	Domain       string         `json:"domain" binding:"omitempty,max=255"`
	Activate     bool           `json:"activate"`
	Context      map[string]any `json:"context"`
	Source       string         `json:"source" binding:"omitempty,oneof=api install admin"`
}

// VerifyLicenseResponse is the data of a successful verification.
type VerifyLicenseResponse struct {
	Valid      bool                `json:"valid"`
	Message    string              `json:"message"`
	Source     string              `json:"source,omitempty"`
	License    *domain.LicenseView `json:"license,omitempty"`
	Activation *ActivationResponse `json:"activation,omitempty"`
}

// VerifyPurchaseCodeRequest is the payload of POST /licenses/purchase-codes/verify.
type VerifyPurchaseCodeRequest struct {
	PurchaseCode string `json:"purchase_code" binding:"required,max=100"`
	ProductID    *int64 `json:"product_id" binding:"omitempty,gt=0"`
	UserID       *int64 `json:"user_id" binding:"omitempty,gt=0"`
}

// VerifyPurchaseCodeResponse is the data of a successful purchase code verification.
type VerifyPurchaseCodeResponse struct {
	Source  string              `json:"source"`
	License *domain.LicenseView `json:"license,omitempty"`
	Sale    *SaleResponse       `json:"sale,omitempty"`
}

// SaleResponse is the caller-facing projection of a marketplace sale.
type SaleResponse struct {
	ItemID         string     `json:"item_id,omitempty"`
	ItemName       string     `json:"item_name,omitempty"`
	Buyer          string     `json:"buyer,omitempty"`
	License        string     `json:"license,omitempty"`
	SoldAt         *time.Time `json:"sold_at,omitempty"`
	SupportedUntil *time.Time `json:"supported_until,omitempty"`
}

// ActivateDomainRequest is the payload of POST /licenses/:key/domains.
type ActivateDomainRequest struct {
	Domain  string         `json:"domain" binding:"required,max=255,license_domain"`
	Context map[string]any `json:"context"`
}

// ActivationResponse describes one domain binding after activation.
type ActivationResponse struct {
	Domain          string    `json:"domain"`
	ActivatedAt     time.Time `json:"activated_at"`
	Reactivated     bool      `json:"reactivated"`
	DevelopmentHost bool      `json:"development_host"`
	ActivationCount int64     `json:"activation_count"`
	ActiveDomains   int       `json:"active_domains"`
}

// DeactivateDomainResponse reports whether a binding was switched off.
type DeactivateDomainResponse struct {
	Domain      string `json:"domain"`
	Deactivated bool   `json:"deactivated"`
}

// ChangeStatusRequest is the payload of POST /licenses/:key/status.
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive suspended expired"`
	Reason string `json:"reason" binding:"max=500"`
}

// DomainResponse is a recorded domain binding.
type DomainResponse struct {
	Domain      string    `json:"domain"`
	Active      bool      `json:"active"`
	ActivatedAt time.Time `json:"activated_at"`
}

// LicenseDetailsResponse is the data of GET /licenses/:key.
type LicenseDetailsResponse struct {
	License domain.LicenseView `json:"license"`
	Domains []DomainResponse   `json:"domains"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse is returned by the readiness endpoint.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func newActivationResponse(result *domain.ActivationResult) *ActivationResponse {
	if result == nil {
		return nil
	}
	return &ActivationResponse{
		Domain:          result.Activation.Domain,
		ActivatedAt:     result.Activation.ActivatedAt,
		Reactivated:     result.Reactivated,
		DevelopmentHost: result.DevelopmentHost,
		ActivationCount: result.ActivationCount,
		ActiveDomains:   result.ActiveDomains,
	}
}

func newLicenseDetailsResponse(details *usecase.LicenseDetails) LicenseDetailsResponse {
	domains := make([]DomainResponse, 0, len(details.Domains))
	for _, d := range details.Domains {
		domains = append(domains, DomainResponse{Domain: d.Domain, Active: d.Active, ActivatedAt: d.ActivatedAt})
	}
	return LicenseDetailsResponse{License: details.View, Domains: domains}
}
