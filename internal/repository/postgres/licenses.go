package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
	"github.com/shubra2641/liceinc/internal/repository"
)

const licensesTable = "licensing.licenses"

var licenseColumns = []string{
	"id",
	"purchase_code",
	"license_key",
	"user_id",
	"product_id",
	"license_type",
	"status",
	"max_domains",
	"license_expires_at",
	"support_expires_at",
	"activation_count",
	"last_activated_at",
	"notes",
	"marketplace_metadata",
	"created_at",
	"updated_at",
}

// LicenseRepository implements port.LicenseRepository for PostgreSQL.
type LicenseRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLicenseRepository constructs the repository from a generic executor.
func NewLicenseRepository(exec pgExecutor) *LicenseRepository {
	return &LicenseRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx binds the repository to execute statements within the supplied transaction.
func (r *LicenseRepository) WithTx(tx pgx.Tx) *LicenseRepository {
	if tx == nil {
		return r
	}
	return &LicenseRepository{exec: tx, builder: r.builder}
}

var _ port.LicenseRepository = (*LicenseRepository)(nil)

// GetByID fetches a license by primary key.
func (r *LicenseRepository) GetByID(ctx context.Context, id int64) (*domain.License, error) {
	return r.selectOne(ctx, squirrel.Eq{"id": id}, "")
}

// GetByLicenseKey fetches a license by its generated key.
func (r *LicenseRepository) GetByLicenseKey(ctx context.Context, key string) (*domain.License, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, repository.ErrNotFound
	}
	return r.selectOne(ctx, squirrel.Eq{"license_key": key}, "")
}

// FindByCode matches either the purchase code or the license key, optionally scoped to a product.
func (r *LicenseRepository) FindByCode(ctx context.Context, code string, productID *int64) (*domain.License, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, repository.ErrNotFound
	}
	where := squirrel.And{squirrel.Or{
		squirrel.Eq{"purchase_code": code},
		squirrel.Eq{"license_key": code},
	}}
	if productID != nil {
		where = append(where, squirrel.Eq{"product_id": *productID})
	}
	return r.selectOne(ctx, where, "")
}

// LockByID selects the license row FOR UPDATE. It must run inside a transaction.
func (r *LicenseRepository) LockByID(ctx context.Context, id int64) (*domain.License, error) {
	return r.selectOne(ctx, squirrel.Eq{"id": id}, "FOR UPDATE")
}

func (r *LicenseRepository) selectOne(ctx context.Context, where squirrel.Sqlizer, suffix string) (*domain.License, error) {
	query := r.builder.
		Select(licenseColumns...).
		From(licensesTable).
		Where(where).
		OrderBy("id").
		Limit(1)
	if suffix != "" {
		query = query.Suffix(suffix)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select license sql: %w", err)
	}

	license, err := scanLicense(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select license: %w", err)
	}
	return license, nil
}

// Create inserts a license and returns it with the assigned identifier.
func (r *LicenseRepository) Create(ctx context.Context, license domain.License) (*domain.License, error) {
	metadata, err := marshalJSONB(license.MarketplaceMetadata)
	if err != nil {
		return nil, fmt.Errorf("marshal marketplace metadata: %w", err)
	}

	now := time.Now().UTC()
	if license.CreatedAt.IsZero() {
		license.CreatedAt = now
	}
	if license.UpdatedAt.IsZero() {
		license.UpdatedAt = license.CreatedAt
	}

	stmt, args, err := r.builder.Insert(licensesTable).
		Columns(licenseColumns[1:]...).
		Values(
			nullableString(license.PurchaseCode),
			nullableString(license.LicenseKey),
			license.UserID,
			license.ProductID,
			string(license.Type),
			string(license.Status),
			license.MaxDomains,
			license.LicenseExpiresAt,
			license.SupportExpiresAt,
			license.ActivationCount,
			license.LastActivatedAt,
			nullableString(license.Notes),
			metadata,
			license.CreatedAt,
			license.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert license sql: %w", err)
	}

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&license.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("insert license: %w", err)
	}
	return &license, nil
}

// RecordActivation increments the activation counter and returns its new value.
func (r *LicenseRepository) RecordActivation(ctx context.Context, id int64, at time.Time) (int64, error) {
	stmt, args, err := r.builder.Update(licensesTable).
		Set("activation_count", squirrel.Expr("activation_count + 1")).
		Set("last_activated_at", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING activation_count").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build record activation sql: %w", err)
	}

	var count int64
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("record activation: %w", err)
	}
	return count, nil
}

// UpdateStatus sets the lifecycle status of a license.
func (r *LicenseRepository) UpdateStatus(ctx context.Context, id int64, status domain.LicenseStatus, at time.Time) error {
	stmt, args, err := r.builder.Update(licensesTable).
		Set("status", string(status)).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update license status sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update license status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanLicense(row pgx.Row) (*domain.License, error) {
	var (
		license      domain.License
		purchaseCode *string
		licenseKey   *string
		notes        *string
		licenseType  string
		status       string
		metadata     []byte
	)

	if err := row.Scan(
		&license.ID,
		&purchaseCode,
		&licenseKey,
		&license.UserID,
		&license.ProductID,
		&licenseType,
		&status,
		&license.MaxDomains,
		&license.LicenseExpiresAt,
		&license.SupportExpiresAt,
		&license.ActivationCount,
		&license.LastActivatedAt,
		&notes,
		&metadata,
		&license.CreatedAt,
		&license.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if purchaseCode != nil {
		license.PurchaseCode = *purchaseCode
	}
	if licenseKey != nil {
		license.LicenseKey = *licenseKey
	}
	if notes != nil {
		license.Notes = *notes
	}
	license.Type = domain.LicenseType(licenseType)
	license.Status = domain.LicenseStatus(status)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &license.MarketplaceMetadata); err != nil {
			return nil, fmt.Errorf("decode marketplace metadata: %w", err)
		}
	}
	return &license, nil
}

func marshalJSONB(value map[string]any) ([]byte, error) {
	if len(value) == 0 {
		return nil, nil
	}
	return json.Marshal(value)
}

func nullableString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
