package security

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shubra2641/liceinc/internal/core/port"
)

// LicenseKeyGenerator issues random license keys as 32 uppercase hex characters,
// which pass purchase-code normalization unchanged.
type LicenseKeyGenerator struct{}

// NewLicenseKeyGenerator constructs the generator.
func NewLicenseKeyGenerator() LicenseKeyGenerator {
	return LicenseKeyGenerator{}
}

var _ port.LicenseKeyGenerator = LicenseKeyGenerator{}

// Generate returns a new key.
func (LicenseKeyGenerator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate license key: %w", err)
	}
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")), nil
}
