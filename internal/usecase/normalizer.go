package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shubra2641/liceinc/internal/core/domain"
)

const (
	MinPurchaseCodeLength = 8
	MaxPurchaseCodeLength = 50
)

var (
	htmlTagPattern      = regexp.MustCompile(`<[^>]*>`)
	purchaseCodePattern = regexp.MustCompile(`^[A-Z0-9]+$`)
	codeSeparators      = strings.NewReplacer(" ", "", "-", "", "_", "")
)

// NormalizePurchaseCode cleans raw caller input into the canonical purchase code form.
func NormalizePurchaseCode(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: purchase code is required", domain.ErrInvalidFormat)
	}

	code := cleanPurchaseCode(raw)
	if n := len(code); n < MinPurchaseCodeLength || n > MaxPurchaseCodeLength {
		return "", fmt.Errorf("%w: purchase code must be between %d and %d characters", domain.ErrInvalidFormat, MinPurchaseCodeLength, MaxPurchaseCodeLength)
	}
	if !purchaseCodePattern.MatchString(code) {
		return "", fmt.Errorf("%w: purchase code contains invalid characters", domain.ErrInvalidFormat)
	}
	return code, nil
}

func cleanPurchaseCode(raw string) string {
	stripped := htmlTagPattern.ReplaceAllString(raw, "")
	stripped = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, stripped)
	return codeSeparators.Replace(strings.ToUpper(stripped))
}

// IsSuspiciousPurchaseCode flags codes with low-entropy shapes. It never rejects input.
func IsSuspiciousPurchaseCode(raw string) bool {
	code := cleanPurchaseCode(raw)
	if len(code) < MinPurchaseCodeLength {
		return true
	}

	runes := []rune(code)
	digits, letters := 0, 0
	repeated := true
	for i, r := range runes {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'A' && r <= 'Z':
			letters++
		}
		if i > 0 && r != runes[0] {
			repeated = false
		}
	}

	return repeated || digits == len(runes) || letters == len(runes)
}
