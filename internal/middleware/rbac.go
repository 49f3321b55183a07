package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/collegehub-api/internal/models"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
	"github.com/noah-isme/collegehub-api/pkg/response"
)

// UserResolver loads the current user record.
type UserResolver interface {
	ResolveUser(ctx context.Context, userID string) (*models.User, error)
}

// RequireRoles admits only the listed roles. The role is read from storage on every request
// rather than trusted from the token, so promotions and demotions apply immediately.
func RequireRoles(resolver UserResolver, roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := resolver.ResolveUser(c.Request.Context(), claims.UserID)
		if err != nil {
			if appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
				err = appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		if _, ok := allowed[user.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
