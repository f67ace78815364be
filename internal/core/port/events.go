package port

import (
	"context"

	"github.com/shubra2641/liceinc/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishLicenseMaterialized(ctx context.Context, event domain.LicenseMaterializedEvent) error
	PublishDomainActivated(ctx context.Context, event domain.DomainActivatedEvent) error
	PublishDomainDeactivated(ctx context.Context, event domain.DomainDeactivatedEvent) error
	PublishLicenseStatusChanged(ctx context.Context, event domain.LicenseStatusChangedEvent) error
	PublishVerificationFailed(ctx context.Context, event domain.VerificationFailedEvent) error
}
