package security

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/shubra2641/liceinc/internal/core/port"
)

// CodeHasher derives deterministic one-way digests of purchase codes with keyed BLAKE2b-256.
// The same key must be used across instances so log entries and cache keys correlate.
type CodeHasher struct {
	key []byte
}

// NewCodeHasher builds a hasher. An empty key yields an unkeyed digest, acceptable only outside production.
func NewCodeHasher(key string) (*CodeHasher, error) {
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("hash key must be at most %d bytes", blake2b.Size)
	}
	return &CodeHasher{key: []byte(key)}, nil
}

var _ port.CodeHasher = (*CodeHasher)(nil)

// Hash returns the hex-encoded digest of the code.
func (h *CodeHasher) Hash(code string) string {
	// New256 only fails for keys longer than 64 bytes, which the constructor rejects.
	digest, _ := blake2b.New256(h.key)
	digest.Write([]byte(code))
	return hex.EncodeToString(digest.Sum(nil))
}
