package port

import (
	"context"
	"time"

	"github.com/shubra2641/liceinc/internal/core/domain"
)

// VerificationLogRepository appends and reads audit entries. Entries are never updated.
type VerificationLogRepository interface {
	Append(ctx context.Context, entry domain.VerificationLogEntry) (*domain.VerificationLogEntry, error)
	ListSince(ctx context.Context, since time.Time) ([]domain.VerificationLogEntry, error)
}

// FailureMirror receives failed or erroring verification attempts for operator visibility.
type FailureMirror interface {
	MirrorFailure(ctx context.Context, entry domain.VerificationLogEntry) error
}
