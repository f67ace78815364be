package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/repository"
)

func TestDomainActivationRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDomainActivationRepository(mock)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(activationColumns).
		AddRow(int64(5), int64(9), "example.com", true, at, []byte(`{"version":"1.2"}`), at, at)

	mock.ExpectQuery(`SELECT .*FROM licensing\.domain_activations WHERE domain = \$1 AND license_id = \$2 LIMIT 1`).
		WithArgs("example.com", int64(9)).
		WillReturnRows(rows)

	activation, err := repo.Get(context.Background(), 9, "example.com")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !activation.Active || activation.Domain != "example.com" {
		t.Fatalf("unexpected activation %+v", activation)
	}
	if activation.Context["version"] != "1.2" {
		t.Fatalf("expected context to decode, got %v", activation.Context)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDomainActivationRepository_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDomainActivationRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM licensing\.domain_activations`).
		WithArgs("example.com", int64(9)).
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.Get(context.Background(), 9, "example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDomainActivationRepository_CountActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDomainActivationRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM licensing\.domain_activations WHERE is_active = \$1 AND license_id = \$2`).
		WithArgs(true, int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountActive(context.Background(), 9)
	if err != nil {
		t.Fatalf("CountActive returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 active domains, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDomainActivationRepository_ListByLicense(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDomainActivationRepository(mock)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(activationColumns).
		AddRow(int64(5), int64(9), "a.example.com", true, at, nil, at, at).
		AddRow(int64(6), int64(9), "b.example.com", false, at, nil, at, at)

	mock.ExpectQuery(`SELECT .*FROM licensing\.domain_activations WHERE license_id = \$1 ORDER BY id`).
		WithArgs(int64(9)).
		WillReturnRows(rows)

	activations, err := repo.ListByLicense(context.Background(), 9, false)
	if err != nil {
		t.Fatalf("ListByLicense returned error: %v", err)
	}
	if len(activations) != 2 || activations[1].Active {
		t.Fatalf("unexpected activations %+v", activations)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDomainActivationRepository_Deactivate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDomainActivationRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE licensing\.domain_activations SET is_active = \$1, updated_at = \$2 WHERE domain = \$3 AND is_active = \$4 AND license_id = \$5`).
		WithArgs(false, at, "example.com", true, int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE licensing\.domain_activations`).
		WithArgs(false, at, "example.com", true, int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	changed, err := repo.Deactivate(context.Background(), 9, "example.com", at)
	if err != nil || !changed {
		t.Fatalf("expected first deactivate to change a row, got %v %v", changed, err)
	}
	changed, err = repo.Deactivate(context.Background(), 9, "example.com", at)
	if err != nil || changed {
		t.Fatalf("expected second deactivate to be a no-op, got %v %v", changed, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDomainActivationRepository_DeactivateAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDomainActivationRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE licensing\.domain_activations SET is_active = \$1, updated_at = \$2 WHERE is_active = \$3 AND license_id = \$4`).
		WithArgs(false, at, true, int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	count, err := repo.DeactivateAll(context.Background(), 9, at)
	if err != nil {
		t.Fatalf("DeactivateAll returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 rows, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDomainActivationRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewDomainActivationRepository(mock)
	at := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO licensing\.domain_activations .* RETURNING id`).
		WithArgs(int64(9), "example.com", true, at, pgxmock.AnyArg(), at, at).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))

	created, err := repo.Create(context.Background(), domain.DomainActivation{
		LicenseID:   9,
		Domain:      "example.com",
		Active:      true,
		ActivatedAt: at,
		Context:     map[string]any{"ip": "203.0.113.4"},
		CreatedAt:   at,
		UpdatedAt:   at,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID != 12 {
		t.Fatalf("expected id 12, got %d", created.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
