package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCheckUsable(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	active := License{Status: LicenseStatusActive}
	if err := active.CheckUsable(now); err != nil {
		t.Fatalf("expected perpetual active license to be usable, got %v", err)
	}

	lapsed := License{Status: LicenseStatusActive, LicenseExpiresAt: ptrTime(now.Add(-time.Minute))}
	if err := lapsed.CheckUsable(now); !errors.Is(err, ErrLicenseExpired) {
		t.Fatalf("expected ErrLicenseExpired, got %v", err)
	}

	suspended := License{Status: LicenseStatusSuspended}
	if err := suspended.CheckUsable(now); !errors.Is(err, ErrLicenseInactive) {
		t.Fatalf("expected ErrLicenseInactive, got %v", err)
	}

	expired := License{Status: LicenseStatusExpired}
	if err := expired.CheckUsable(now); !errors.Is(err, ErrLicenseExpired) {
		t.Fatalf("expected ErrLicenseExpired for expired status, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from  LicenseStatus
		to    LicenseStatus
		actor string
		want  bool
	}{
		{LicenseStatusActive, LicenseStatusSuspended, "billing", true},
		{LicenseStatusActive, LicenseStatusExpired, "system", true},
		{LicenseStatusInactive, LicenseStatusActive, "system", true},
		{LicenseStatusSuspended, LicenseStatusActive, "system", false},
		{LicenseStatusSuspended, LicenseStatusActive, ActorAdmin, true},
		{LicenseStatusSuspended, LicenseStatusInactive, ActorAdmin, false},
		{LicenseStatusExpired, LicenseStatusActive, ActorAdmin, true},
		{LicenseStatusExpired, LicenseStatusSuspended, ActorAdmin, false},
		{LicenseStatusActive, LicenseStatusActive, ActorAdmin, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to, tc.actor); got != tc.want {
			t.Fatalf("CanTransition(%s, %s, %s) = %v, want %v", tc.from, tc.to, tc.actor, got, tc.want)
		}
	}
}

func TestPolicyForCoversEveryLicenseType(t *testing.T) {
	for _, licenseType := range LicenseTypes {
		policy, err := PolicyFor(licenseType)
		if err != nil {
			t.Fatalf("missing policy for %s: %v", licenseType, err)
		}
		if policy.MaxDomains < 1 {
			t.Fatalf("policy for %s allows no domains", licenseType)
		}
	}

	if _, err := PolicyFor(LicenseType("enterprise")); err == nil {
		t.Fatalf("expected unknown license type to be rejected")
	}

	developer, _ := PolicyFor(LicenseTypeDeveloper)
	if !developer.AllowDevelopmentHosts || developer.MaxDomains != 10 {
		t.Fatalf("unexpected developer policy: %+v", developer)
	}
}

func TestLicenseTypeFromMarketplace(t *testing.T) {
	if got := LicenseTypeFromMarketplace("Extended License", ""); got != LicenseTypeExtended {
		t.Fatalf("expected extended, got %s", got)
	}
	if got := LicenseTypeFromMarketplace("mystery", LicenseTypeMulti); got != LicenseTypeMulti {
		t.Fatalf("expected fallback multi, got %s", got)
	}
	if got := LicenseTypeFromMarketplace("", ""); got != LicenseTypeRegular {
		t.Fatalf("expected regular default, got %s", got)
	}
}

func TestNewLicenseViewComputesWindows(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	license := License{
		LicenseKey:       "key",
		Status:           LicenseStatusActive,
		LicenseExpiresAt: ptrTime(now.Add(5 * 24 * time.Hour)),
	}

	view := NewLicenseView(license, now)
	if view.LicenseState != WindowExpiringSoon {
		t.Fatalf("expected expiring_soon, got %s", view.LicenseState)
	}
	if view.DaysRemaining == nil || *view.DaysRemaining != 5 {
		t.Fatalf("expected 5 days remaining, got %v", view.DaysRemaining)
	}
	if view.SupportDaysRemaining != nil || view.SupportState != WindowActive {
		t.Fatalf("expected perpetual support window, got %+v", view)
	}
}
