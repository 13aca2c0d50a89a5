package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-attendance-api/internal/models"
	appErrors "github.com/noah-isme/classroom-attendance-api/pkg/errors"
	"github.com/noah-isme/classroom-attendance-api/pkg/response"
)

var roleDeniedMessages = map[models.UserRole]string{
	models.RoleTeacher: "Forbidden, teacher access required",
	models.RoleStudent: "Forbidden, student access required",
}

// RequireRoles admits requests whose verified role is one of roles. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	denied := appErrors.ErrForbidden
	if len(roles) == 1 {
		if msg, ok := roleDeniedMessages[roles[0]]; ok {
			denied = appErrors.Clone(appErrors.ErrForbidden, msg)
		}
	}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Abort(c, denied)
			return
		}
		c.Next()
	}
}
