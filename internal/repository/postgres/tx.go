package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shubra2641/liceinc/internal/core/port"
)

// TxManager runs license and activation work inside one database transaction.
type TxManager struct {
	db          pgBeginner
	licenses    *LicenseRepository
	activations *DomainActivationRepository
}

// NewTxManager constructs a TxManager bound to the supplied repositories.
func NewTxManager(db pgBeginner, licenses *LicenseRepository, activations *DomainActivationRepository) *TxManager {
	return &TxManager{db: db, licenses: licenses, activations: activations}
}

// RunInLicenseTx executes fn with transaction-scoped repositories. The transaction commits only when fn returns nil.
func (m *TxManager) RunInLicenseTx(ctx context.Context, fn func(licenses port.LicenseRepository, activations port.DomainActivationRepository) error) (err error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin license tx: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback license tx: %w", rbErr))
		}
	}()

	if err = fn(m.licenses.WithTx(tx), m.activations.WithTx(tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit license tx: %w", err)
	}
	return nil
}
