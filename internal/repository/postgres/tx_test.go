package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
)

func TestTxManager_CommitsOnSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repos := NewRepositories(mock)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(9)).
		WillReturnRows(licenseRows("ABCD1234EFGH", "LK0001", domain.LicenseStatusActive))
	mock.ExpectExec(`UPDATE licensing\.domain_activations`).
		WithArgs(false, at, true, int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = repos.Tx.RunInLicenseTx(context.Background(), func(licenses port.LicenseRepository, activations port.DomainActivationRepository) error {
		license, err := licenses.LockByID(context.Background(), 9)
		if err != nil {
			return err
		}
		_, err = activations.DeactivateAll(context.Background(), license.ID, at)
		return err
	})
	if err != nil {
		t.Fatalf("RunInLicenseTx returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repos := NewRepositories(mock)
	boom := errors.New("domain limit reached")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = repos.Tx.RunInLicenseTx(context.Background(), func(port.LicenseRepository, port.DomainActivationRepository) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
