package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/collegehub-api/internal/models"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
)

type stubResolver struct {
	users map[string]*models.User
	err   error
}

func (s *stubResolver) ResolveUser(ctx context.Context, userID string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return u, nil
}

func newRBACRouter(resolver UserResolver, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	})
	r.GET("/admin", RequireRoles(resolver, models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func serve(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	return w
}

func TestRequireRolesReadsCurrentRole(t *testing.T) {
	resolver := &stubResolver{users: map[string]*models.User{
		"u1": {ID: "u1", Role: models.RoleCollegeUser},
	}}
	// The token still claims ADMIN but storage says otherwise.
	r := newRBACRouter(resolver, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin})
	assert.Equal(t, http.StatusForbidden, serve(r).Code)

	resolver.users["u1"].Role = models.RoleAdmin
	assert.Equal(t, http.StatusOK, serve(r).Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	r := newRBACRouter(&stubResolver{}, nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r).Code)
}

func TestRequireRolesDeletedAccount(t *testing.T) {
	r := newRBACRouter(&stubResolver{users: map[string]*models.User{}}, &models.JWTClaims{UserID: "gone"})
	assert.Equal(t, http.StatusUnauthorized, serve(r).Code)

	r = newRBACRouter(&stubResolver{err: appErrors.Internal(sql.ErrConnDone, "failed to load user")}, &models.JWTClaims{UserID: "u1"})
	assert.Equal(t, http.StatusInternalServerError, serve(r).Code)
}
