package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/collegehub-api/internal/models"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
)

type identityUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// IdentityService resolves a user's current role and college affiliation. Every call reads
// storage so a role change applies to the very next request.
type IdentityService struct {
	users identityUserRepository
}

// NewIdentityService constructs the resolver.
func NewIdentityService(users identityUserRepository) *IdentityService {
	return &IdentityService{users: users}
}

// ResolveUser loads the user record or returns a NotFound error.
func (s *IdentityService) ResolveUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// Resolve returns the role and affiliation of userID.
func (s *IdentityService) Resolve(ctx context.Context, userID string) (*models.Identity, error) {
	user, err := s.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Identity{UserID: user.ID, Role: user.Role, CollegeID: user.CollegeID}, nil
}
