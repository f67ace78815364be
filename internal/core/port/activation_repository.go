package port

import (
	"context"
	"time"

	"github.com/shubra2641/liceinc/internal/core/domain"
)

// DomainActivationRepository persists (license, domain) bindings.
type DomainActivationRepository interface {
	Get(ctx context.Context, licenseID int64, domainName string) (*domain.DomainActivation, error)
	CountActive(ctx context.Context, licenseID int64) (int, error)
	ListByLicense(ctx context.Context, licenseID int64, activeOnly bool) ([]domain.DomainActivation, error)
	Create(ctx context.Context, activation domain.DomainActivation) (*domain.DomainActivation, error)
	Reactivate(ctx context.Context, id int64, at time.Time, activationContext map[string]any) error
	// Deactivate reports whether an active binding was switched off.
	Deactivate(ctx context.Context, licenseID int64, domainName string, at time.Time) (bool, error)
	DeactivateAll(ctx context.Context, licenseID int64, at time.Time) (int, error)
}
