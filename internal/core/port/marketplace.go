package port

import (
	"context"
	"errors"

	"github.com/shubra2641/liceinc/internal/core/domain"
)

var (
	// ErrMarketplaceRejected indicates the marketplace answered and does not recognise the code.
	ErrMarketplaceRejected = errors.New("marketplace: purchase code rejected")
	// ErrMarketplaceTimeout indicates the marketplace call exceeded its deadline.
	ErrMarketplaceTimeout = errors.New("marketplace: request timed out")
	// ErrMarketplaceUnavailable indicates a transport or server-side failure.
	ErrMarketplaceUnavailable = errors.New("marketplace: unavailable")
)

// MarketplaceVerifier checks purchase codes against the external marketplace.
type MarketplaceVerifier interface {
	VerifyPurchaseCode(ctx context.Context, code string) (*domain.MarketplaceSale, error)
}
