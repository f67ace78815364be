package domain

import (
	"fmt"
	"time"
)

const defaultTerm = 365 * 24 * time.Hour

// LicensePolicy captures the per-type rules applied when materialising and enforcing licenses.
type LicensePolicy struct {
	MaxDomains            int
	LicenseTerm           time.Duration
	SupportTerm           time.Duration
	AllowDevelopmentHosts bool
}

// PolicyFor resolves the policy for a license type. Unknown types are rejected rather than defaulted.
func PolicyFor(t LicenseType) (LicensePolicy, error) {
	switch t {
	case LicenseTypeSingle, LicenseTypeRegular:
		return LicensePolicy{MaxDomains: 1, LicenseTerm: defaultTerm, SupportTerm: defaultTerm}, nil
	case LicenseTypeExtended:
		return LicensePolicy{MaxDomains: 1, LicenseTerm: defaultTerm, SupportTerm: 5 * defaultTerm}, nil
	case LicenseTypeMulti:
		return LicensePolicy{MaxDomains: 5, LicenseTerm: defaultTerm, SupportTerm: defaultTerm}, nil
	case LicenseTypeDeveloper:
		return LicensePolicy{MaxDomains: 10, LicenseTerm: defaultTerm, SupportTerm: defaultTerm, AllowDevelopmentHosts: true}, nil
	default:
		return LicensePolicy{}, fmt.Errorf("no policy for license type %q", t)
	}
}

// LicenseTypeFromMarketplace maps a marketplace license label onto a license type.
func LicenseTypeFromMarketplace(label string, fallback LicenseType) LicenseType {
	switch label {
	case "Regular License", "regular":
		return LicenseTypeRegular
	case "Extended License", "extended":
		return LicenseTypeExtended
	}
	if parsed, err := ParseLicenseType(label); err == nil {
		return parsed
	}
	if fallback != "" {
		return fallback
	}
	return LicenseTypeRegular
}
