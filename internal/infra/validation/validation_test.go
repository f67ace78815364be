package validation

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
)

func TestValidator_ValidHostname(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	cases := []struct {
		host string
		want bool
	}{
		{"example.com", true},
		{"shop.example.co.uk", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"", false},
		{"exa mple.com", false},
		{"-bad-.com", false},
		{"under_score.com", false},
	}
	for _, tc := range cases {
		if got := v.ValidHostname(tc.host); got != tc.want {
			t.Fatalf("ValidHostname(%q) = %v, want %v", tc.host, got, tc.want)
		}
	}
}

func TestRegisterWithGin_LicenseDomainTag(t *testing.T) {
	if err := RegisterWithGin(); err != nil {
		t.Fatalf("RegisterWithGin returned error: %v", err)
	}

	type request struct {
		Domain string `binding:"omitempty,license_domain"`
	}

	if err := binding.Validator.ValidateStruct(request{Domain: "https://Example.com/path"}); err != nil {
		t.Fatalf("expected canonicalizable domain to pass, got %v", err)
	}
	if err := binding.Validator.ValidateStruct(request{Domain: "not a host"}); err == nil {
		t.Fatalf("expected invalid domain to fail")
	}
	if err := binding.Validator.ValidateStruct(request{}); err != nil {
		t.Fatalf("expected empty optional domain to pass, got %v", err)
	}
}
