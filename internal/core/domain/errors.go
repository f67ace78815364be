package domain

import "errors"

var (
	// ErrInvalidFormat indicates a malformed purchase code or domain supplied by the caller.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrInvalidPurchaseCode indicates neither the local store nor the marketplace recognises the code.
	ErrInvalidPurchaseCode = errors.New("invalid purchase code")
	// ErrLicenseNotFound indicates no license matches the supplied identifier.
	ErrLicenseNotFound = errors.New("license not found")
	// ErrLicenseInactive indicates the license exists but is not in the active state.
	ErrLicenseInactive = errors.New("license is not active")
	// ErrLicenseExpired indicates the license window has closed.
	ErrLicenseExpired = errors.New("license has expired")
	// ErrInvalidDomain indicates the requested domain is not a valid hostname.
	ErrInvalidDomain = errors.New("invalid domain")
	// ErrDomainNotAuthorized indicates the domain is not activated for the license.
	ErrDomainNotAuthorized = errors.New("domain not authorized for license")
	// ErrDomainLimitReached indicates the license has no free domain slots.
	ErrDomainLimitReached = errors.New("domain limit reached")
	// ErrRemoteUnavailable indicates the marketplace could not be reached; verification may be retried.
	ErrRemoteUnavailable = errors.New("marketplace unavailable")
	// ErrInvalidLogData indicates a verification log call carried invalid data.
	ErrInvalidLogData = errors.New("invalid verification log data")
	// ErrInvalidStatusTransition indicates a lifecycle change the state machine forbids.
	ErrInvalidStatusTransition = errors.New("invalid license status transition")
	// ErrRateLimited indicates the caller exceeded the allowed attempts for an action.
	ErrRateLimited = errors.New("too many attempts")
	// ErrSystem is the generic failure surfaced to callers for unexpected errors.
	ErrSystem = errors.New("system error")
)
