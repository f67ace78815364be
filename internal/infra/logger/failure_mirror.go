package logger

import (
	"context"

	"go.uber.org/zap"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
)

// OpsFailureMirror writes failed verification attempts to a dedicated operational log channel.
type OpsFailureMirror struct {
	logger *zap.Logger
}

// NewOpsFailureMirror builds a mirror that logs under the named channel.
func NewOpsFailureMirror(base *zap.Logger, channel string) *OpsFailureMirror {
	if base == nil {
		base = zap.NewNop()
	}
	if channel == "" {
		channel = "license-failures"
	}
	return &OpsFailureMirror{logger: base.Named(channel)}
}

var _ port.FailureMirror = (*OpsFailureMirror)(nil)

// MirrorFailure logs the entry with masked caller data. The code hash is truncated for correlation only.
func (m *OpsFailureMirror) MirrorFailure(ctx context.Context, entry domain.VerificationLogEntry) error {
	fields := []zap.Field{
		zap.String("code_hash", MaskString(entry.CodeHash)),
		zap.String("domain", entry.Domain),
		zap.String("ip", MaskIP(entry.IPAddress)),
		zap.String("source", string(entry.Source)),
		zap.String("status", string(entry.Status)),
		zap.String("message", entry.Message),
	}
	if entry.ErrorDetail != "" {
		fields = append(fields, zap.String("error_detail", entry.ErrorDetail))
	}
	if id := requestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}

	if entry.Status == domain.VerificationErrored {
		m.logger.Error("license verification errored", fields...)
		return nil
	}
	m.logger.Warn("license verification failed", fields...)
	return nil
}
