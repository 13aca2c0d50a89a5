package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-attendance-api/internal/models"
	appErrors "github.com/noah-isme/classroom-attendance-api/pkg/errors"
	"github.com/noah-isme/classroom-attendance-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token. The Authorization header
// may carry the bare token or a Bearer-prefixed one.
func JWT(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromHeader(c.GetHeader("Authorization"))
		if token == "" {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func tokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// Claims returns the verified claims attached by JWT.
func Claims(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok && claims != nil
}
