package domain

// Product is a sellable item whose licenses this service enforces.
type Product struct {
	ID                         int64
	Name                       string
	MarketplaceItemID          string
	RequiresDomainVerification bool
	DefaultLicenseType         LicenseType
	LicenseTermDays            int
	SupportTermDays            int
}
