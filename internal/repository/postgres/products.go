package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
	"github.com/shubra2641/liceinc/internal/repository"
)

// ProductRepository reads product definitions from PostgreSQL.
type ProductRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewProductRepository constructs a ProductRepository.
func NewProductRepository(exec pgExecutor) *ProductRepository {
	return &ProductRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ port.ProductRepository = (*ProductRepository)(nil)

// GetByID fetches a product by primary key.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	stmt, args, err := r.builder.
		Select(
			"id",
			"name",
			"marketplace_item_id",
			"requires_domain_verification",
			"default_license_type",
			"license_term_days",
			"support_term_days",
		).
		From("licensing.products").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select product sql: %w", err)
	}

	var (
		product     domain.Product
		itemID      *string
		licenseType string
	)
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(
		&product.ID,
		&product.Name,
		&itemID,
		&product.RequiresDomainVerification,
		&licenseType,
		&product.LicenseTermDays,
		&product.SupportTermDays,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	if itemID != nil {
		product.MarketplaceItemID = *itemID
	}
	product.DefaultLicenseType = domain.LicenseType(licenseType)
	return &product, nil
}
