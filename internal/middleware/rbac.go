package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/unidocs-api/internal/models"
	appErrors "github.com/noah-isme/unidocs-api/pkg/errors"
	"github.com/noah-isme/unidocs-api/pkg/response"
)

// RequireRoles admits callers whose normalised role is in roles. It must run
// after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		actor := Actor(c)
		if actor == nil {
			response.AbortError(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[models.NormalizeRole(string(actor.Role))]; !ok {
			response.AbortError(c, appErrors.Clone(appErrors.ErrForbidden, "Insufficient permissions"))
			return
		}
		c.Next()
	}
}
