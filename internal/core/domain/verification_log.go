package domain

import "time"

// VerificationSource names the subsystem a verification request entered through.
type VerificationSource string

const (
	SourceInstall VerificationSource = "install"
	SourceAPI     VerificationSource = "api"
	SourceAdmin   VerificationSource = "admin"
)

// Valid reports whether the source is a recognised entry point.
func (s VerificationSource) Valid() bool {
	switch s {
	case SourceInstall, SourceAPI, SourceAdmin:
		return true
	default:
		return false
	}
}

// VerificationStatus is the derived outcome stored with each log entry.
type VerificationStatus string

const (
	VerificationSucceeded VerificationStatus = "success"
	VerificationFailed    VerificationStatus = "failed"
	VerificationErrored   VerificationStatus = "error"
)

// DeriveVerificationStatus computes the stored status from validity and error detail.
func DeriveVerificationStatus(isValid bool, errorDetail string) VerificationStatus {
	if isValid {
		return VerificationSucceeded
	}
	if errorDetail != "" {
		return VerificationErrored
	}
	return VerificationFailed
}

// RequestMeta carries caller metadata captured with a verification attempt.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// VerificationLogEntry is the immutable audit record of one verification attempt.
type VerificationLogEntry struct {
	ID           int64
	CodeHash     string
	Domain       string
	IPAddress    string
	UserAgent    string
	IsValid      bool
	Message      string
	ResponseData map[string]any
	Source       VerificationSource
	Status       VerificationStatus
	ErrorDetail  string
	VerifiedAt   *time.Time
	CreatedAt    time.Time
}
