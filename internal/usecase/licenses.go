package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
	"github.com/shubra2641/liceinc/internal/repository"
)

// ErrActorRequired indicates the actor responsible for the mutation is missing.
var ErrActorRequired = errors.New("actor is required")

// LicenseDetails is a license view together with its recorded domains.
type LicenseDetails struct {
	View    domain.LicenseView
	Domains []domain.DomainActivation
}

// StatusChangeInput captures an administrative lifecycle change.
type StatusChangeInput struct {
	LicenseKey string
	Status     domain.LicenseStatus
	Actor      string
	Reason     string
}

// LicenseService exposes administrative license operations.
type LicenseService struct {
	licenses    port.LicenseRepository
	activations port.DomainActivationRepository
	tx          LicenseTxFunc
	cache       port.VerificationCache
	hasher      port.CodeHasher
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewLicenseService constructs a LicenseService.
func NewLicenseService(licenses port.LicenseRepository, activations port.DomainActivationRepository, tx LicenseTxFunc) *LicenseService {
	return &LicenseService{
		licenses:    licenses,
		activations: activations,
		tx:          tx,
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithCache enables invalidation of cached verifications after status changes.
func (s *LicenseService) WithCache(cache port.VerificationCache, hasher port.CodeHasher) *LicenseService {
	s.cache = cache
	s.hasher = hasher
	return s
}

// WithEvents attaches the event publisher.
func (s *LicenseService) WithEvents(events port.EventPublisher) *LicenseService {
	s.events = events
	return s
}

// WithLogger attaches a structured logger.
func (s *LicenseService) WithLogger(logger *zap.Logger) *LicenseService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNow overrides the clock.
func (s *LicenseService) WithNow(now func() time.Time) *LicenseService {
	if now != nil {
		s.now = now
	}
	return s
}

// Get returns the license view with lifecycle information and its domains.
func (s *LicenseService) Get(ctx context.Context, licenseKey string) (*LicenseDetails, error) {
	license, err := findLicenseByKey(ctx, s.licenses, licenseKey)
	if err != nil {
		return nil, err
	}
	domains, err := s.activations.ListByLicense(ctx, license.ID, false)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	return &LicenseDetails{View: domain.NewLicenseView(*license, s.now()), Domains: domains}, nil
}

// ChangeStatus applies a lifecycle transition. Suspending a license deactivates all of its domains in the same transaction.
func (s *LicenseService) ChangeStatus(ctx context.Context, input StatusChangeInput) (*domain.License, error) {
	if !input.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidStatusTransition, input.Status)
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		return nil, ErrActorRequired
	}

	license, err := findLicenseByKey(ctx, s.licenses, input.LicenseKey)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, license.ID, input.Status, actor, input.Reason)
}

func (s *LicenseService) transition(ctx context.Context, licenseID int64, to domain.LicenseStatus, actor, reason string) (*domain.License, error) {
	now := s.now()
	var (
		change      domain.LicenseStatusChange
		updated     domain.License
		deactivated int
	)

	err := s.withTx(ctx, func(licenses port.LicenseRepository, activations port.DomainActivationRepository) error {
		locked, err := licenses.LockByID(ctx, licenseID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.ErrLicenseNotFound
			}
			return fmt.Errorf("lock license: %w", err)
		}
		if !domain.CanTransition(locked.Status, to, actor) {
			return fmt.Errorf("%w: %s to %s", domain.ErrInvalidStatusTransition, locked.Status, to)
		}

		if err := licenses.UpdateStatus(ctx, locked.ID, to, now); err != nil {
			return fmt.Errorf("update license status: %w", err)
		}
		if to == domain.LicenseStatusSuspended {
			deactivated, err = activations.DeactivateAll(ctx, locked.ID, now)
			if err != nil {
				return fmt.Errorf("deactivate domains: %w", err)
			}
		}

		change = domain.LicenseStatusChange{
			LicenseID: locked.ID,
			From:      locked.Status,
			To:        to,
			Actor:     actor,
			Reason:    reason,
			ChangedAt: now,
		}
		updated = *locked
		updated.Status = to
		updated.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.hasher != nil {
		if err := s.cache.Invalidate(ctx, licenseCacheKeys(s.hasher, updated)...); err != nil {
			s.logger.Warn("invalidate verification cache failed", zap.Int64("license_id", updated.ID), zap.Error(err))
		}
	}

	if s.events != nil {
		event := domain.LicenseStatusChangedEvent{
			EventID:   uuid.NewString(),
			LicenseID: change.LicenseID,
			From:      change.From,
			To:        change.To,
			Actor:     change.Actor,
			Reason:    change.Reason,
			ChangedAt: change.ChangedAt,
		}
		if err := s.events.PublishLicenseStatusChanged(ctx, event); err != nil {
			s.logger.Warn("publish license status changed event failed", zap.Int64("license_id", updated.ID), zap.Error(err))
		}
	}

	s.logger.Info("license status changed",
		zap.Int64("license_id", updated.ID),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)),
		zap.String("actor", actor),
		zap.Int("domains_deactivated", deactivated),
	)
	return &updated, nil
}

// ApplyBillingCommand suspends the license named by a refund or chargeback.
// Commands for licenses that are already suspended or expired are acknowledged without change.
func (s *LicenseService) ApplyBillingCommand(ctx context.Context, cmd domain.BillingCommand) error {
	switch cmd.Type {
	case domain.BillingCommandRefunded, domain.BillingCommandChargeback:
	default:
		return fmt.Errorf("unsupported billing command %q", cmd.Type)
	}

	license, err := s.resolveBillingLicense(ctx, cmd)
	if err != nil {
		return err
	}
	if license.Status == domain.LicenseStatusSuspended || license.Status == domain.LicenseStatusExpired {
		return nil
	}

	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = cmd.Type
	}
	_, err = s.transition(ctx, license.ID, domain.LicenseStatusSuspended, domain.ActorAdmin, reason)
	return err
}

func (s *LicenseService) resolveBillingLicense(ctx context.Context, cmd domain.BillingCommand) (*domain.License, error) {
	if strings.TrimSpace(cmd.LicenseKey) != "" {
		return findLicenseByKey(ctx, s.licenses, cmd.LicenseKey)
	}
	code, err := NormalizePurchaseCode(cmd.PurchaseCode)
	if err != nil {
		return nil, err
	}
	license, err := s.licenses.FindByCode(ctx, code, nil)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrLicenseNotFound
		}
		return nil, fmt.Errorf("find license: %w", err)
	}
	return license, nil
}

func (s *LicenseService) withTx(ctx context.Context, fn func(licenses port.LicenseRepository, activations port.DomainActivationRepository) error) error {
	if s.tx == nil {
		return fn(s.licenses, s.activations)
	}
	return s.tx(ctx, fn)
}

func findLicenseByKey(ctx context.Context, licenses port.LicenseRepository, raw string) (*domain.License, error) {
	key, err := NormalizePurchaseCode(raw)
	if err != nil {
		return nil, domain.ErrLicenseNotFound
	}
	license, err := licenses.GetByLicenseKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrLicenseNotFound
		}
		return nil, fmt.Errorf("load license: %w", err)
	}
	return license, nil
}
