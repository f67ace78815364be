package port

import (
	"context"
	"time"

	"github.com/shubra2641/liceinc/internal/core/domain"
)

// VerificationCache stores license snapshots keyed by hashed purchase code.
type VerificationCache interface {
	GetLicense(ctx context.Context, codeHash string) (*domain.License, error)
	SetLicense(ctx context.Context, codeHash string, license domain.License, ttl time.Duration) error
	Invalidate(ctx context.Context, codeHashes ...string) error
}
