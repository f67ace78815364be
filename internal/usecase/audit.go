package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
)

// minLoggedCodeLength matches the shortest code the normalizer accepts so every
// normalized attempt can be audited.
const minLoggedCodeLength = MinPurchaseCodeLength

const (
	maxLogMessageLength      = 1000
	maxLogErrorDetailLength  = 2000
	maxResponseDataDepth     = 5
	maxResponseDataTopLevels = 100
)

// AuditInput describes one verification attempt to be recorded.
type AuditInput struct {
	Code         string
	Domain       string
	IsValid      bool
	Message      string
	ResponseData map[string]any
	Source       domain.VerificationSource
	Meta         domain.RequestMeta
	ErrorDetail  string
}

// AuditLogger validates and appends verification log entries.
type AuditLogger struct {
	logs      port.VerificationLogRepository
	hasher    port.CodeHasher
	hostnames port.HostnameValidator
	mirror    port.FailureMirror
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuditLogger constructs an AuditLogger.
func NewAuditLogger(logs port.VerificationLogRepository, hasher port.CodeHasher, hostnames port.HostnameValidator) *AuditLogger {
	return &AuditLogger{
		logs:      logs,
		hasher:    hasher,
		hostnames: hostnames,
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithMirror attaches the operational sink that receives failed attempts.
func (a *AuditLogger) WithMirror(mirror port.FailureMirror) *AuditLogger {
	a.mirror = mirror
	return a
}

// WithLogger attaches a structured logger.
func (a *AuditLogger) WithLogger(logger *zap.Logger) *AuditLogger {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithNow overrides the clock.
func (a *AuditLogger) WithNow(now func() time.Time) *AuditLogger {
	if now != nil {
		a.now = now
	}
	return a
}

// Log validates the input, hashes the code and appends the entry.
func (a *AuditLogger) Log(ctx context.Context, input AuditInput) (*domain.VerificationLogEntry, error) {
	if err := a.validate(input); err != nil {
		return nil, err
	}

	now := a.now()
	entry := domain.VerificationLogEntry{
		CodeHash:     a.hasher.Hash(input.Code),
		Domain:       domain.CanonicalDomain(input.Domain),
		IPAddress:    strings.TrimSpace(input.Meta.IP),
		UserAgent:    strings.TrimSpace(input.Meta.UserAgent),
		IsValid:      input.IsValid,
		Message:      input.Message,
		ResponseData: input.ResponseData,
		Source:       input.Source,
		Status:       domain.DeriveVerificationStatus(input.IsValid, input.ErrorDetail),
		ErrorDetail:  input.ErrorDetail,
		CreatedAt:    now,
	}
	if input.IsValid {
		entry.VerifiedAt = &now
	}

	stored, err := a.logs.Append(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("append verification log: %w", err)
	}

	if stored.Status != domain.VerificationSucceeded && a.mirror != nil {
		if mirrorErr := a.mirror.MirrorFailure(ctx, *stored); mirrorErr != nil {
			a.logger.Warn("mirror failed verification", zap.Int64("log_id", stored.ID), zap.Error(mirrorErr))
		}
	}

	return stored, nil
}

func (a *AuditLogger) validate(input AuditInput) error {
	if len(strings.TrimSpace(input.Code)) < minLoggedCodeLength {
		return fmt.Errorf("%w: code must be at least %d characters", domain.ErrInvalidLogData, minLoggedCodeLength)
	}
	host := domain.CanonicalDomain(input.Domain)
	if host == "" || !a.hostnames.ValidHostname(host) {
		return fmt.Errorf("%w: domain %q is not a valid hostname", domain.ErrInvalidLogData, input.Domain)
	}
	if !input.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", domain.ErrInvalidLogData, input.Source)
	}
	if len([]rune(input.Message)) > maxLogMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", domain.ErrInvalidLogData, maxLogMessageLength)
	}
	if len([]rune(input.ErrorDetail)) > maxLogErrorDetailLength {
		return fmt.Errorf("%w: error detail exceeds %d characters", domain.ErrInvalidLogData, maxLogErrorDetailLength)
	}
	if len(input.ResponseData) > maxResponseDataTopLevels {
		return fmt.Errorf("%w: response data has more than %d keys", domain.ErrInvalidLogData, maxResponseDataTopLevels)
	}
	if input.ResponseData != nil && nestingDepth(input.ResponseData) > maxResponseDataDepth {
		return fmt.Errorf("%w: response data nested deeper than %d levels", domain.ErrInvalidLogData, maxResponseDataDepth)
	}
	return nil
}

// nestingDepth counts container levels; a flat map has depth 1.
func nestingDepth(value any) int {
	deepest := 0
	switch v := value.(type) {
	case map[string]any:
		for _, child := range v {
			if d := nestingDepth(child); d > deepest {
				deepest = d
			}
		}
	case []any:
		for _, child := range v {
			if d := nestingDepth(child); d > deepest {
				deepest = d
			}
		}
	default:
		return 0
	}
	return deepest + 1
}
