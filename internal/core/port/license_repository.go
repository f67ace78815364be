package port

import (
	"context"
	"time"

	"github.com/shubra2641/liceinc/internal/core/domain"
)

// LicenseRepository deals with license storage.
type LicenseRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.License, error)
	GetByLicenseKey(ctx context.Context, key string) (*domain.License, error)
	// FindByCode matches the purchase code or license key, optionally scoped to a product.
	FindByCode(ctx context.Context, code string, productID *int64) (*domain.License, error)
	// LockByID loads the license row and holds a write lock until the surrounding transaction ends.
	LockByID(ctx context.Context, id int64) (*domain.License, error)
	Create(ctx context.Context, license domain.License) (*domain.License, error)
	RecordActivation(ctx context.Context, id int64, at time.Time) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status domain.LicenseStatus, at time.Time) error
}

// ProductRepository reads product definitions.
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}
