package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Licenses      *LicenseRepository
	Activations   *DomainActivationRepository
	Products      *ProductRepository
	Verifications *VerificationLogRepository
	Tx            *TxManager
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool pgBeginner) *Repositories {
	licenses := NewLicenseRepository(pool)
	activations := NewDomainActivationRepository(pool)
	return &Repositories{
		Licenses:      licenses,
		Activations:   activations,
		Products:      NewProductRepository(pool),
		Verifications: NewVerificationLogRepository(pool),
		Tx:            NewTxManager(pool, licenses, activations),
	}
}
