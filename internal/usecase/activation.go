package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
	"github.com/shubra2641/liceinc/internal/repository"
)

// LicenseTxFunc runs fn inside one transaction over the license and activation repositories.
type LicenseTxFunc func(ctx context.Context, fn func(licenses port.LicenseRepository, activations port.DomainActivationRepository) error) error

// ActivationService manages the domains a license is allowed to run on.
type ActivationService struct {
	licenses    port.LicenseRepository
	activations port.DomainActivationRepository
	products    port.ProductRepository
	hostnames   port.HostnameValidator
	tx          LicenseTxFunc
	cache       port.VerificationCache
	hasher      port.CodeHasher
	events      port.EventPublisher
	guard       *AttemptGuard
	metrics     LicensingMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewActivationService constructs the activation manager.
func NewActivationService(licenses port.LicenseRepository, activations port.DomainActivationRepository, products port.ProductRepository, hostnames port.HostnameValidator, tx LicenseTxFunc) *ActivationService {
	return &ActivationService{
		licenses:    licenses,
		activations: activations,
		products:    products,
		hostnames:   hostnames,
		tx:          tx,
		metrics:     noopMetrics{},
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithCache enables invalidation of cached verifications after domain changes.
func (s *ActivationService) WithCache(cache port.VerificationCache, hasher port.CodeHasher) *ActivationService {
	s.cache = cache
	s.hasher = hasher
	return s
}

// WithEvents attaches the event publisher.
func (s *ActivationService) WithEvents(events port.EventPublisher) *ActivationService {
	s.events = events
	return s
}

// WithGuard attaches per-IP attempt limits applied by ActivateByKey.
func (s *ActivationService) WithGuard(guard *AttemptGuard) *ActivationService {
	s.guard = guard
	return s
}

// WithMetrics attaches telemetry hooks.
func (s *ActivationService) WithMetrics(metrics LicensingMetrics) *ActivationService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithLogger attaches a structured logger.
func (s *ActivationService) WithLogger(logger *zap.Logger) *ActivationService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNow overrides the clock.
func (s *ActivationService) WithNow(now func() time.Time) *ActivationService {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *ActivationService) withTx(ctx context.Context, fn func(licenses port.LicenseRepository, activations port.DomainActivationRepository) error) error {
	if s.tx == nil {
		return fn(s.licenses, s.activations)
	}
	return s.tx(ctx, fn)
}

// ActivateByKey resolves the license by key and activates the domain for it.
func (s *ActivationService) ActivateByKey(ctx context.Context, licenseKey, rawDomain string, activationContext map[string]any, meta domain.RequestMeta) (*domain.ActivationResult, error) {
	if !s.guard.Allow(ctx, ActionActivate, meta.IP) {
		s.metrics.IncActivation("rate_limited")
		return nil, domain.ErrRateLimited
	}
	license, err := findLicenseByKey(ctx, s.licenses, licenseKey)
	if err != nil {
		return nil, err
	}
	return s.Activate(ctx, license.ID, rawDomain, activationContext)
}

// Activate binds the domain to the license, reactivating an existing binding in place.
// The license row stays locked for the whole check-then-insert sequence.
func (s *ActivationService) Activate(ctx context.Context, licenseID int64, rawDomain string, activationContext map[string]any) (*domain.ActivationResult, error) {
	ctx, span := tracer.Start(ctx, "ActivationService.Activate")
	defer span.End()

	host := domain.CanonicalDomain(rawDomain)
	now := s.now()

	var (
		result  domain.ActivationResult
		license domain.License
	)
	err := s.withTx(ctx, func(licenses port.LicenseRepository, activations port.DomainActivationRepository) error {
		locked, err := licenses.LockByID(ctx, licenseID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrLicenseNotFound
			}
			return fmt.Errorf("lock license: %w", err)
		}
		license = *locked

		if err := license.CheckUsable(now); err != nil {
			return err
		}
		if host == "" || s.hostnames == nil || !s.hostnames.ValidHostname(host) {
			return domain.ErrInvalidDomain
		}

		policy, err := domain.PolicyFor(license.Type)
		if err != nil {
			return err
		}
		if policy.AllowDevelopmentHosts && domain.IsDevelopmentHost(host) {
			result = domain.ActivationResult{
				Activation:      domain.DomainActivation{LicenseID: license.ID, Domain: host, Active: true, ActivatedAt: now},
				ActivationCount: license.ActivationCount,
				DevelopmentHost: true,
			}
			return nil
		}

		maxDomains := license.MaxDomains
		if maxDomains < 1 {
			maxDomains = policy.MaxDomains
		}

		existing, err := activations.Get(ctx, license.ID, host)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("load activation: %w", err)
		}

		active, err := activations.CountActive(ctx, license.ID)
		if err != nil {
			return fmt.Errorf("count active domains: %w", err)
		}

		if existing != nil {
			if !existing.Active {
				if active >= maxDomains {
					return domain.ErrDomainLimitReached
				}
				active++
			}
			merged := domain.MergeContext(existing.Context, activationContext)
			if err := activations.Reactivate(ctx, existing.ID, now, merged); err != nil {
				return fmt.Errorf("reactivate domain: %w", err)
			}
			existing.Active = true
			existing.ActivatedAt = now
			existing.UpdatedAt = now
			existing.Context = merged
			result = domain.ActivationResult{
				Activation:      *existing,
				Reactivated:     true,
				ActivationCount: license.ActivationCount,
				ActiveDomains:   active,
			}
			return nil
		}

		if active >= maxDomains {
			return domain.ErrDomainLimitReached
		}

		created, err := activations.Create(ctx, domain.DomainActivation{
			LicenseID:   license.ID,
			Domain:      host,
			Active:      true,
			ActivatedAt: now,
			Context:     domain.MergeContext(nil, activationContext),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("create activation: %w", err)
		}

		count, err := licenses.RecordActivation(ctx, license.ID, now)
		if err != nil {
			return fmt.Errorf("record activation: %w", err)
		}

		result = domain.ActivationResult{
			Activation:      *created,
			ActivationCount: count,
			ActiveDomains:   active + 1,
		}
		return nil
	})
	if err != nil {
		s.metrics.IncActivation(errorLabel(err))
		span.RecordError(err)
		return nil, err
	}

	s.metrics.IncActivation("success")
	if result.DevelopmentHost {
		return &result, nil
	}

	s.invalidate(ctx, license)
	if s.events != nil {
		event := domain.DomainActivatedEvent{
			EventID:         uuid.NewString(),
			LicenseID:       license.ID,
			Domain:          host,
			Reactivated:     result.Reactivated,
			ActivationCount: result.ActivationCount,
			ActivatedAt:     now,
		}
		if err := s.events.PublishDomainActivated(ctx, event); err != nil {
			s.logger.Warn("publish domain activated event failed", zap.Int64("license_id", license.ID), zap.Error(err))
		}
	}
	return &result, nil
}

// DeactivateByKey resolves the license by key and deactivates the domain.
func (s *ActivationService) DeactivateByKey(ctx context.Context, licenseKey, rawDomain, reason string) (bool, error) {
	license, err := findLicenseByKey(ctx, s.licenses, licenseKey)
	if err != nil {
		return false, err
	}
	return s.Deactivate(ctx, license.ID, rawDomain, reason)
}

// Deactivate switches the binding off. Deactivating an inactive or unknown binding is a no-op.
func (s *ActivationService) Deactivate(ctx context.Context, licenseID int64, rawDomain, reason string) (bool, error) {
	host := domain.CanonicalDomain(rawDomain)
	if host == "" {
		return false, domain.ErrInvalidDomain
	}
	now := s.now()

	var (
		changed bool
		license domain.License
	)
	err := s.withTx(ctx, func(licenses port.LicenseRepository, activations port.DomainActivationRepository) error {
		locked, err := licenses.LockByID(ctx, licenseID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrLicenseNotFound
			}
			return fmt.Errorf("lock license: %w", err)
		}
		license = *locked

		changed, err = activations.Deactivate(ctx, licenseID, host, now)
		if err != nil {
			return fmt.Errorf("deactivate domain: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	s.invalidate(ctx, license)
	if s.events != nil {
		event := domain.DomainDeactivatedEvent{
			EventID:       uuid.NewString(),
			LicenseID:     licenseID,
			Domain:        host,
			Reason:        reason,
			DeactivatedAt: now,
		}
		if err := s.events.PublishDomainDeactivated(ctx, event); err != nil {
			s.logger.Warn("publish domain deactivated event failed", zap.Int64("license_id", licenseID), zap.Error(err))
		}
	}
	return true, nil
}

// IsDomainAuthorized reports whether the license may run on the domain.
// Products without domain verification and licenses with no active domains are unrestricted.
func (s *ActivationService) IsDomainAuthorized(ctx context.Context, license domain.License, rawDomain string) (bool, error) {
	host := domain.CanonicalDomain(rawDomain)

	if s.products != nil {
		product, err := s.products.GetByID(ctx, license.ProductID)
		switch {
		case err == nil && !product.RequiresDomainVerification:
			return true, nil
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return false, fmt.Errorf("load product: %w", err)
		}
	}

	if policy, err := domain.PolicyFor(license.Type); err == nil && policy.AllowDevelopmentHosts && domain.IsDevelopmentHost(host) {
		return true, nil
	}

	active, err := s.activations.ListByLicense(ctx, license.ID, true)
	if err != nil {
		return false, fmt.Errorf("list active domains: %w", err)
	}
	if len(active) == 0 {
		return true, nil
	}
	for _, activation := range active {
		if activation.Domain == host {
			return true, nil
		}
	}
	return false, nil
}

func (s *ActivationService) invalidate(ctx context.Context, license domain.License) {
	if s.cache == nil || s.hasher == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, licenseCacheKeys(s.hasher, license)...); err != nil {
		s.logger.Warn("invalidate verification cache failed", zap.Int64("license_id", license.ID), zap.Error(err))
	}
}

func licenseCacheKeys(hasher port.CodeHasher, license domain.License) []string {
	keys := make([]string, 0, 2)
	if license.PurchaseCode != "" {
		keys = append(keys, hasher.Hash(license.PurchaseCode))
	}
	if license.LicenseKey != "" {
		keys = append(keys, hasher.Hash(license.LicenseKey))
	}
	return keys
}
