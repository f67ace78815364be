package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
)

const (
	verificationLogsTable = "licensing.verification_logs"
	// maxLogScan caps analytic reads so a noisy window cannot exhaust memory.
	maxLogScan = 100000
)

var verificationLogColumns = []string{
	"id",
	"purchase_code_hash",
	"domain",
	"ip_address",
	"user_agent",
	"is_valid",
	"message",
	"response_data",
	"source",
	"status",
	"error_detail",
	"verified_at",
	"created_at",
}

// VerificationLogRepository persists the append-only verification audit log.
type VerificationLogRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewVerificationLogRepository constructs the repository.
func NewVerificationLogRepository(exec pgExecutor) *VerificationLogRepository {
	return &VerificationLogRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ port.VerificationLogRepository = (*VerificationLogRepository)(nil)

// Append inserts one audit entry.
func (r *VerificationLogRepository) Append(ctx context.Context, entry domain.VerificationLogEntry) (*domain.VerificationLogEntry, error) {
	payload, err := marshalJSONB(entry.ResponseData)
	if err != nil {
		return nil, fmt.Errorf("marshal response data: %w", err)
	}

	stmt, args, err := r.builder.Insert(verificationLogsTable).
		Columns(verificationLogColumns[1:]...).
		Values(
			entry.CodeHash,
			entry.Domain,
			nullableString(entry.IPAddress),
			nullableString(entry.UserAgent),
			entry.IsValid,
			entry.Message,
			payload,
			string(entry.Source),
			string(entry.Status),
			nullableString(entry.ErrorDetail),
			entry.VerifiedAt,
			entry.CreatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert verification log sql: %w", err)
	}

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&entry.ID); err != nil {
		return nil, fmt.Errorf("insert verification log: %w", err)
	}
	return &entry, nil
}

// ListSince returns entries created at or after the supplied moment, oldest first. When the
// window holds more than maxLogScan rows the newest ones are kept.
func (r *VerificationLogRepository) ListSince(ctx context.Context, since time.Time) ([]domain.VerificationLogEntry, error) {
	stmt, args, err := r.builder.
		Select(verificationLogColumns...).
		From(verificationLogsTable).
		Where(squirrel.GtOrEq{"created_at": since}).
		OrderBy("created_at DESC", "id DESC").
		Limit(maxLogScan).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list verification logs sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list verification logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.VerificationLogEntry
	for rows.Next() {
		entry, err := scanVerificationLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification log: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification logs: %w", err)
	}
	slices.Reverse(entries)
	return entries, nil
}

func scanVerificationLog(row pgx.Row) (*domain.VerificationLogEntry, error) {
	var (
		entry       domain.VerificationLogEntry
		ip          *string
		userAgent   *string
		errorDetail *string
		payload     []byte
		source      string
		status      string
	)
	if err := row.Scan(
		&entry.ID,
		&entry.CodeHash,
		&entry.Domain,
		&ip,
		&userAgent,
		&entry.IsValid,
		&entry.Message,
		&payload,
		&source,
		&status,
		&errorDetail,
		&entry.VerifiedAt,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	if ip != nil {
		entry.IPAddress = *ip
	}
	if userAgent != nil {
		entry.UserAgent = *userAgent
	}
	if errorDetail != nil {
		entry.ErrorDetail = *errorDetail
	}
	entry.Source = domain.VerificationSource(source)
	entry.Status = domain.VerificationStatus(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &entry.ResponseData); err != nil {
			return nil, fmt.Errorf("decode response data: %w", err)
		}
	}
	return &entry, nil
}
