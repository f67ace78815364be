package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shubra2641/liceinc/internal/infra/security"
)

// AdminTokenValidator validates operator bearer tokens.
type AdminTokenValidator interface {
	Validate(token string) (*security.AdminClaims, error)
}

// RequireAdmin validates the Authorization header and stores the operator subject in the context.
func RequireAdmin(validator AdminTokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithEnvelope(c, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithEnvelope(c, http.StatusUnauthorized, codeUnauthorized, "invalid authorization format: expected 'Bearer <token>'")
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			abortWithEnvelope(c, http.StatusUnauthorized, codeUnauthorized, "missing access token")
			return
		}

		claims, err := validator.Validate(token)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrAdminTokenInvalid):
				abortWithEnvelope(c, http.StatusUnauthorized, codeUnauthorized, "invalid access token")
			default:
				abortWithEnvelope(c, http.StatusInternalServerError, codeSystemError, "authentication failed")
			}
			return
		}

		c.Set(AdminSubjectKey, claims.Subject)

		c.Next()
	}
}

// GetAdminSubject returns the authenticated operator subject, if any.
func GetAdminSubject(c *gin.Context) (string, bool) {
	subject, exists := c.Get(AdminSubjectKey)
	if !exists {
		return "", false
	}
	if s, ok := subject.(string); ok && s != "" {
		return s, true
	}
	return "", false
}
