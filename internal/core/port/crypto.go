package port

// CodeHasher produces a deterministic one-way digest of a purchase code.
type CodeHasher interface {
	Hash(code string) string
}

// LicenseKeyGenerator issues new license keys.
type LicenseKeyGenerator interface {
	Generate() (string, error)
}

// HostnameValidator checks that a canonical domain is a syntactically valid hostname.
type HostnameValidator interface {
	ValidHostname(domain string) bool
}
