package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/shubra2641/liceinc/internal/core/domain"
)

func newLicenseFixture(t *testing.T) (*memoryStore, *ActivationService, *LicenseService, *eventRecorder, *cacheStub) {
	t.Helper()
	store, activations := newActivationFixture(t)
	events := &eventRecorder{}
	cache := newCacheStub()
	svc := NewLicenseService(&licenseRepoStub{store: store}, &activationRepoStub{store: store}, store.txFunc()).
		WithCache(cache, sha256Hasher{}).
		WithEvents(events).
		WithLogger(zaptest.NewLogger(t)).
		WithNow(fixedClock(activationNow))
	return store, activations, svc, events, cache
}

func TestSuspendDeactivatesEveryDomain(t *testing.T) {
	store, activations, svc, events, cache := newLicenseFixture(t)
	license := store.addLicense(activeLicense(domain.LicenseTypeMulti, 5))
	ctx := context.Background()

	for _, host := range []string{"a.example.com", "b.example.com"} {
		if _, err := activations.Activate(ctx, license.ID, host, nil); err != nil {
			t.Fatalf("activate %s: %v", host, err)
		}
	}

	updated, err := svc.ChangeStatus(ctx, StatusChangeInput{LicenseKey: license.LicenseKey, Status: domain.LicenseStatusSuspended, Actor: "billing", Reason: "chargeback"})
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if updated.Status != domain.LicenseStatusSuspended {
		t.Fatalf("expected suspended, got %s", updated.Status)
	}
	if got := store.activeDomains(license.ID); got != 0 {
		t.Fatalf("expected all domains deactivated, got %d active", got)
	}
	if len(events.statuses) != 1 || events.statuses[0].From != domain.LicenseStatusActive {
		t.Fatalf("unexpected status events: %+v", events.statuses)
	}
	if len(cache.invalidated) == 0 {
		t.Fatalf("expected cache invalidation")
	}
}

func TestReactivationRequiresAdmin(t *testing.T) {
	store, _, svc, _, _ := newLicenseFixture(t)
	suspended := activeLicense(domain.LicenseTypeSingle, 1)
	suspended.Status = domain.LicenseStatusSuspended
	suspended = store.addLicense(suspended)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, StatusChangeInput{LicenseKey: suspended.LicenseKey, Status: domain.LicenseStatusActive, Actor: "support"})
	if !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
	if store.license(suspended.ID).Status != domain.LicenseStatusSuspended {
		t.Fatalf("status must not change on rejected transition")
	}

	if _, err := svc.ChangeStatus(ctx, StatusChangeInput{LicenseKey: suspended.LicenseKey, Status: domain.LicenseStatusActive, Actor: domain.ActorAdmin}); err != nil {
		t.Fatalf("admin reactivation: %v", err)
	}
	if store.license(suspended.ID).Status != domain.LicenseStatusActive {
		t.Fatalf("expected reactivated license")
	}
}

func TestChangeStatusValidatesInput(t *testing.T) {
	store, _, svc, _, _ := newLicenseFixture(t)
	license := store.addLicense(activeLicense(domain.LicenseTypeSingle, 1))
	ctx := context.Background()

	if _, err := svc.ChangeStatus(ctx, StatusChangeInput{LicenseKey: license.LicenseKey, Status: "revoked", Actor: domain.ActorAdmin}); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected unknown status to be rejected, got %v", err)
	}
	if _, err := svc.ChangeStatus(ctx, StatusChangeInput{LicenseKey: license.LicenseKey, Status: domain.LicenseStatusInactive}); !errors.Is(err, ErrActorRequired) {
		t.Fatalf("expected ErrActorRequired, got %v", err)
	}
	if _, err := svc.ChangeStatus(ctx, StatusChangeInput{LicenseKey: "LK99999999999999", Status: domain.LicenseStatusInactive, Actor: domain.ActorAdmin}); !errors.Is(err, domain.ErrLicenseNotFound) {
		t.Fatalf("expected ErrLicenseNotFound, got %v", err)
	}
}

func TestApplyBillingCommandSuspendsLicense(t *testing.T) {
	store, _, svc, events, _ := newLicenseFixture(t)
	license := store.addLicense(activeLicense(domain.LicenseTypeSingle, 1))
	ctx := context.Background()

	cmd := domain.BillingCommand{EventID: "evt-1", Type: domain.BillingCommandRefunded, PurchaseCode: "abcd-1234-efgh", OccurredAt: activationNow}
	if err := svc.ApplyBillingCommand(ctx, cmd); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if store.license(license.ID).Status != domain.LicenseStatusSuspended {
		t.Fatalf("expected suspended license")
	}
	if err := svc.ApplyBillingCommand(ctx, cmd); err != nil {
		t.Fatalf("expected redelivery to be a no-op, got %v", err)
	}
	if len(events.statuses) != 1 {
		t.Fatalf("expected a single status change, got %d", len(events.statuses))
	}

	if err := svc.ApplyBillingCommand(ctx, domain.BillingCommand{Type: "license.renewed", LicenseKey: license.LicenseKey}); err == nil {
		t.Fatalf("expected unsupported command to fail")
	}
}

func TestGetReturnsViewWithDomains(t *testing.T) {
	store, activations, svc, _, _ := newLicenseFixture(t)
	license := activeLicense(domain.LicenseTypeMulti, 5)
	license.LicenseExpiresAt = timePtr(activationNow.Add(20 * 24 * time.Hour))
	license = store.addLicense(license)
	if _, err := activations.Activate(context.Background(), license.ID, "example.com", nil); err != nil {
		t.Fatalf("activate: %v", err)
	}

	details, err := svc.Get(context.Background(), "lk00000000000001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if details.View.LicenseState != domain.WindowExpiringSoon || details.View.DaysRemaining == nil || *details.View.DaysRemaining != 20 {
		t.Fatalf("unexpected view: %+v", details.View)
	}
	if len(details.Domains) != 1 || details.Domains[0].Domain != "example.com" {
		t.Fatalf("unexpected domains: %+v", details.Domains)
	}
}
