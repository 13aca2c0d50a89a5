package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-attendance-api/internal/middleware"
	"github.com/noah-isme/classroom-attendance-api/internal/models"
	appErrors "github.com/noah-isme/classroom-attendance-api/pkg/errors"
	"github.com/noah-isme/classroom-attendance-api/pkg/response"
)

// claimsFromContext returns the verified caller or writes 401 and returns nil.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Abort(c, appErrors.ErrUnauthorized)
		return nil
	}
	return claims
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message))
		return false
	}
	return true
}
