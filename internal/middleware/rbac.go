package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-api/internal/models"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
	"github.com/noah-isme/uni-api/pkg/response"
)

func guard(allow func(models.UserRole) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		switch {
		case claims == nil:
			response.Error(c, appErrors.ErrUnauthorized)
		case !allow(claims.Role):
			response.Error(c, appErrors.ErrForbidden)
		default:
			c.Next()
		}
	}
}

// Require admits callers whose role holds any of the capabilities.
func Require(capabilities ...models.Capability) gin.HandlerFunc {
	return guard(func(role models.UserRole) bool {
		for _, capability := range capabilities {
			if role.Can(capability) {
				return true
			}
		}
		return false
	})
}

// RequireRoles admits only the listed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return guard(func(role models.UserRole) bool { return allowed[role] })
}
