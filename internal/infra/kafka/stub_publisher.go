package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

var _ port.EventPublisher = (*StubPublisher)(nil)

func (p *StubPublisher) logEvent(eventType string, licenseID int64, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.Time("timestamp", at.UTC()),
	}
	if licenseID != 0 {
		base = append(base, zap.Int64("license_id", licenseID))
	}
	p.logger.Info("stub event published", append(base, fields...)...)
}

// PublishLicenseMaterialized logs license.materialized events.
func (p *StubPublisher) PublishLicenseMaterialized(_ context.Context, event domain.LicenseMaterializedEvent) error {
	p.logEvent(EventLicenseMaterialized, event.LicenseID, event.CreatedAt,
		zap.Int64("product_id", event.ProductID),
		zap.String("license_type", string(event.LicenseType)),
	)
	return nil
}

// PublishDomainActivated logs license.domain.activated events.
func (p *StubPublisher) PublishDomainActivated(_ context.Context, event domain.DomainActivatedEvent) error {
	p.logEvent(EventDomainActivated, event.LicenseID, event.ActivatedAt,
		zap.String("domain", event.Domain),
		zap.Bool("reactivated", event.Reactivated),
	)
	return nil
}

// PublishDomainDeactivated logs license.domain.deactivated events.
func (p *StubPublisher) PublishDomainDeactivated(_ context.Context, event domain.DomainDeactivatedEvent) error {
	p.logEvent(EventDomainDeactivated, event.LicenseID, event.DeactivatedAt,
		zap.String("domain", event.Domain),
		zap.String("reason", event.Reason),
	)
	return nil
}

// PublishLicenseStatusChanged logs license.status.changed events.
func (p *StubPublisher) PublishLicenseStatusChanged(_ context.Context, event domain.LicenseStatusChangedEvent) error {
	p.logEvent(EventLicenseStatusChanged, event.LicenseID, event.ChangedAt,
		zap.String("from", string(event.From)),
		zap.String("to", string(event.To)),
		zap.String("actor", event.Actor),
	)
	return nil
}

// PublishVerificationFailed logs license.verification.failed events.
func (p *StubPublisher) PublishVerificationFailed(_ context.Context, event domain.VerificationFailedEvent) error {
	p.logEvent(EventVerificationFailed, 0, event.At,
		zap.String("domain", event.Domain),
		zap.String("status", string(event.Status)),
	)
	return nil
}
