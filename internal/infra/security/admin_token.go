package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrAdminTokenInvalid indicates the token failed signature, claim or role validation.
	ErrAdminTokenInvalid = errors.New("admin token invalid")
	// ErrAdminSecretMissing indicates the HMAC secret was not configured.
	ErrAdminSecretMissing = errors.New("admin token secret not configured")
)

// AdminRole is the only role accepted by administrative endpoints.
const AdminRole = "license_admin"

// AdminClaims are the JWT claims carried by operator tokens.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminTokenManager issues and validates HS256 operator tokens.
type AdminTokenManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewAdminTokenManager constructs the manager.
func NewAdminTokenManager(secret, issuer string) *AdminTokenManager {
	return &AdminTokenManager{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		now:    time.Now,
	}
}

// WithClock overrides the clock used for issuing and validating tokens.
func (m *AdminTokenManager) WithClock(now func() time.Time) *AdminTokenManager {
	if now != nil {
		m.now = now
	}
	return m
}

// Issue mints a token for the subject valid for ttl.
func (m *AdminTokenManager) Issue(subject string, ttl time.Duration) (string, error) {
	if len(m.secret) == 0 {
		return "", ErrAdminSecretMissing
	}
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("subject is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := m.now()
	claims := AdminClaims{
		Role: AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// Validate parses the token and returns its claims when signature, issuer, expiry and role are valid.
func (m *AdminTokenManager) Validate(token string) (*AdminClaims, error) {
	if len(m.secret) == 0 {
		return nil, ErrAdminSecretMissing
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims AdminClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrAdminTokenInvalid, err)
	}
	if claims.Role != AdminRole {
		return nil, fmt.Errorf("%w: role %q", ErrAdminTokenInvalid, claims.Role)
	}
	return &claims, nil
}
