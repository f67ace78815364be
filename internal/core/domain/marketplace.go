package domain

import "time"

// MarketplaceSale is the subset of a marketplace purchase record the engine relies on.
type MarketplaceSale struct {
	ItemID         string
	ItemName       string
	Buyer          string
	LicenseLabel   string
	SoldAt         *time.Time
	SupportedUntil *time.Time
	Raw            map[string]any
}

// Usable reports whether the sale carries enough data to be acted upon.
func (s MarketplaceSale) Usable() bool {
	return s.ItemID != "" || len(s.Raw) > 0
}
