package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
	"github.com/shubra2641/liceinc/internal/repository"
)

const activationsTable = "licensing.domain_activations"

var activationColumns = []string{
	"id",
	"license_id",
	"domain",
	"is_active",
	"activated_at",
	"context",
	"created_at",
	"updated_at",
}

// DomainActivationRepository implements port.DomainActivationRepository for PostgreSQL.
type DomainActivationRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewDomainActivationRepository constructs the repository from a generic executor.
func NewDomainActivationRepository(exec pgExecutor) *DomainActivationRepository {
	return &DomainActivationRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx binds the repository to execute statements within the supplied transaction.
func (r *DomainActivationRepository) WithTx(tx pgx.Tx) *DomainActivationRepository {
	if tx == nil {
		return r
	}
	return &DomainActivationRepository{exec: tx, builder: r.builder}
}

var _ port.DomainActivationRepository = (*DomainActivationRepository)(nil)

// Get fetches the binding for a (license, domain) pair.
func (r *DomainActivationRepository) Get(ctx context.Context, licenseID int64, domainName string) (*domain.DomainActivation, error) {
	stmt, args, err := r.builder.
		Select(activationColumns...).
		From(activationsTable).
		Where(squirrel.Eq{"license_id": licenseID, "domain": domainName}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select activation sql: %w", err)
	}

	activation, err := scanActivation(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select activation: %w", err)
	}
	return activation, nil
}

// CountActive counts active bindings for a license.
func (r *DomainActivationRepository) CountActive(ctx context.Context, licenseID int64) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From(activationsTable).
		Where(squirrel.Eq{"license_id": licenseID, "is_active": true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count activations sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count activations: %w", err)
	}
	return count, nil
}

// ListByLicense lists the bindings of a license ordered by creation.
func (r *DomainActivationRepository) ListByLicense(ctx context.Context, licenseID int64, activeOnly bool) ([]domain.DomainActivation, error) {
	where := squirrel.Eq{"license_id": licenseID}
	if activeOnly {
		where["is_active"] = true
	}
	stmt, args, err := r.builder.
		Select(activationColumns...).
		From(activationsTable).
		Where(where).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list activations sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list activations: %w", err)
	}
	defer rows.Close()

	var activations []domain.DomainActivation
	for rows.Next() {
		activation, err := scanActivation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		activations = append(activations, *activation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activations: %w", err)
	}
	return activations, nil
}

// Create inserts a new binding.
func (r *DomainActivationRepository) Create(ctx context.Context, activation domain.DomainActivation) (*domain.DomainActivation, error) {
	payload, err := marshalJSONB(activation.Context)
	if err != nil {
		return nil, fmt.Errorf("marshal activation context: %w", err)
	}

	stmt, args, err := r.builder.Insert(activationsTable).
		Columns(activationColumns[1:]...).
		Values(
			activation.LicenseID,
			activation.Domain,
			activation.Active,
			activation.ActivatedAt,
			payload,
			activation.CreatedAt,
			activation.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert activation sql: %w", err)
	}

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&activation.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("insert activation: %w", err)
	}
	return &activation, nil
}

// Reactivate switches a binding back on and replaces its context.
func (r *DomainActivationRepository) Reactivate(ctx context.Context, id int64, at time.Time, activationContext map[string]any) error {
	payload, err := marshalJSONB(activationContext)
	if err != nil {
		return fmt.Errorf("marshal activation context: %w", err)
	}

	stmt, args, err := r.builder.Update(activationsTable).
		Set("is_active", true).
		Set("activated_at", at).
		Set("context", payload).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reactivate sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("reactivate domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Deactivate switches an active binding off and reports whether a row changed.
func (r *DomainActivationRepository) Deactivate(ctx context.Context, licenseID int64, domainName string, at time.Time) (bool, error) {
	stmt, args, err := r.builder.Update(activationsTable).
		Set("is_active", false).
		Set("updated_at", at).
		Where(squirrel.Eq{"license_id": licenseID, "domain": domainName, "is_active": true}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build deactivate sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("deactivate domain: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeactivateAll switches off every active binding of a license.
func (r *DomainActivationRepository) DeactivateAll(ctx context.Context, licenseID int64, at time.Time) (int, error) {
	stmt, args, err := r.builder.Update(activationsTable).
		Set("is_active", false).
		Set("updated_at", at).
		Where(squirrel.Eq{"license_id": licenseID, "is_active": true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build deactivate all sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate domains: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanActivation(row pgx.Row) (*domain.DomainActivation, error) {
	var (
		activation domain.DomainActivation
		payload    []byte
	)
	if err := row.Scan(
		&activation.ID,
		&activation.LicenseID,
		&activation.Domain,
		&activation.Active,
		&activation.ActivatedAt,
		&payload,
		&activation.CreatedAt,
		&activation.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &activation.Context); err != nil {
			return nil, fmt.Errorf("decode activation context: %w", err)
		}
	}
	return &activation, nil
}
