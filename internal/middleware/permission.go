package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casa-azul-api/internal/models"
	appErrors "github.com/noah-isme/casa-azul-api/pkg/errors"
	"github.com/noah-isme/casa-azul-api/pkg/response"
)

// PermissionChecker resolves whether a principal holds a permission slug.
type PermissionChecker interface {
	Require(ctx context.Context, p models.Principal, slug string) error
}

// RequirePermission aborts with 403 unless the caller's role grants slug.
// It must run after JWT.
func RequirePermission(checker PermissionChecker, slug string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if err := checker.Require(c.Request.Context(), principal, slug); err != nil {
			response.Error(c, err)
			return
		}
		c.Next()
	}
}

// RequireRoles restricts a route to the given roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[principal.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
