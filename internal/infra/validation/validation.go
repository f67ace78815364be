package validation

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/shubra2641/liceinc/internal/core/domain"
	"github.com/shubra2641/liceinc/internal/core/port"
)

// LicenseDomainTag validates that a field canonicalizes to a usable deployment host.
const LicenseDomainTag = "license_domain"

const maxHostnameLength = 253

// Validator checks deployment hostnames and request payloads.
type Validator struct {
	validate *validator.Validate
}

// New constructs a validator with the license domain rule registered.
func New() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := register(v); err != nil {
		return nil, err
	}
	return &Validator{validate: v}, nil
}

var _ port.HostnameValidator = (*Validator)(nil)

// ValidHostname reports whether the canonical domain is an RFC 1123 hostname or an IP literal.
func (v *Validator) ValidHostname(host string) bool {
	if host == "" || len(host) > maxHostnameLength {
		return false
	}
	if v.validate.Var(host, "hostname_rfc1123") == nil {
		return true
	}
	return v.validate.Var(host, "ip") == nil
}

// RegisterWithGin installs the license domain rule on gin's binding validator.
func RegisterWithGin() error {
	engine, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
	}
	return register(engine)
}

func register(v *validator.Validate) error {
	checker := &Validator{validate: v}
	err := v.RegisterValidation(LicenseDomainTag, func(fl validator.FieldLevel) bool {
		return checker.ValidHostname(domain.CanonicalDomain(fl.Field().String()))
	})
	if err != nil {
		return fmt.Errorf("register %s validation: %w", LicenseDomainTag, err)
	}
	return nil
}
