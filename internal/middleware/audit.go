package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-attendance-api/internal/service"
)

// AuditContext carries the caller's address and user agent into the request context
// so audit entries recorded by services can be attributed.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithRequestMeta(c.Request.Context(), c.ClientIP(), c.GetHeader("User-Agent"))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
