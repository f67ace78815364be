package domain

import "time"

// ExpiringSoonDays is the window, in days, during which an unexpired license is flagged as expiring soon.
const ExpiringSoonDays = 30

// WindowStatus is the derived state of a license or support window.
type WindowStatus string

const (
	WindowActive       WindowStatus = "active"
	WindowExpiringSoon WindowStatus = "expiring_soon"
	WindowExpired      WindowStatus = "expired"
)

// RemainingDays returns the whole days left until expiry, or 0 once expiry has passed.
func RemainingDays(expiry, at time.Time) int {
	if !expiry.After(at) {
		return 0
	}
	return int(expiry.Sub(at) / (24 * time.Hour))
}

// WindowStatusAt derives the window state for a concrete expiry timestamp.
func WindowStatusAt(expiry, at time.Time) WindowStatus {
	if !expiry.After(at) {
		return WindowExpired
	}
	if RemainingDays(expiry, at) <= ExpiringSoonDays {
		return WindowExpiringSoon
	}
	return WindowActive
}

// LicenseWindowStatus derives the license window state; a nil expiry is perpetual.
func LicenseWindowStatus(expiry *time.Time, at time.Time) WindowStatus {
	if expiry == nil {
		return WindowActive
	}
	return WindowStatusAt(*expiry, at)
}

// SupportRemainingDays mirrors RemainingDays for the support window.
func SupportRemainingDays(expiry, at time.Time) int {
	return RemainingDays(expiry, at)
}

// SupportWindowStatus mirrors LicenseWindowStatus for the support window.
func SupportWindowStatus(expiry *time.Time, at time.Time) WindowStatus {
	return LicenseWindowStatus(expiry, at)
}

// LifecycleCalculator evaluates license windows against an injectable clock.
type LifecycleCalculator struct {
	now func() time.Time
}

// NewLifecycleCalculator constructs a calculator; a nil clock falls back to time.Now.
func NewLifecycleCalculator(now func() time.Time) LifecycleCalculator {
	if now == nil {
		now = time.Now
	}
	return LifecycleCalculator{now: now}
}

// RemainingDays returns the whole days until the license expires.
func (c LifecycleCalculator) RemainingDays(expiry time.Time) int {
	return RemainingDays(expiry, c.now())
}

// Status returns the derived license window state.
func (c LifecycleCalculator) Status(expiry *time.Time) WindowStatus {
	return LicenseWindowStatus(expiry, c.now())
}

// SupportRemainingDays returns the whole days until support expires.
func (c LifecycleCalculator) SupportRemainingDays(expiry time.Time) int {
	return SupportRemainingDays(expiry, c.now())
}

// SupportStatus returns the derived support window state.
func (c LifecycleCalculator) SupportStatus(expiry *time.Time) WindowStatus {
	return SupportWindowStatus(expiry, c.now())
}
