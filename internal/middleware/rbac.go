package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
	"github.com/noah-isme/creche-api/pkg/navigation"
	"github.com/noah-isme/creche-api/pkg/response"
)

// RequireRoles lets a request through only when the caller's role parses to one
// of roles. Stored role strings are compared through navigation.ParseRole, so
// "Admin" and "admin" are the same role and anything unrecognised is refused.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[navigation.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r.Navigation()] = struct{}{}
	}
	delete(allowed, navigation.RoleUnknown)

	return func(c *gin.Context) {
		claims, ok := c.Value(ContextUserKey).(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role.Navigation()]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}
}
