package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/collegehub-api/internal/models"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole, collegeID *string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type userCollegeRepository interface {
	FindByID(ctx context.Context, id string) (*models.College, error)
	FindByEmailDomain(ctx context.Context, domain string) (*models.College, error)
}

// UserService manages role assignments.
type UserService struct {
	identity identityResolver
	repo     userRepository
	colleges userCollegeRepository
	logger   *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(identity identityResolver, repo userRepository, colleges userCollegeRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{identity: identity, repo: repo, colleges: colleges, logger: logger}
}

// Get returns the current profile of a user.
func (s *UserService) Get(ctx context.Context, id string) (*models.UserInfo, error) {
	user, err := s.identity.ResolveUser(ctx, id)
	if err != nil {
		return nil, err
	}
	info := userInfo(user)
	return &info, nil
}

// AssignModerator makes userID a moderator of collegeID. Admin only. The change applies to the
// user's next request.
func (s *UserService) AssignModerator(ctx context.Context, actorID, userID, collegeID string, meta models.RequestMeta) (*models.UserInfo, error) {
	if err := requireAdmin(ctx, s.identity, actorID); err != nil {
		return nil, err
	}
	target, err := s.identity.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.Role == models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrConflict, "admins cannot be assigned as moderators")
	}
	if _, err := s.colleges.FindByID(ctx, collegeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return nil, appErrors.Internal(err, "failed to load college")
	}

	return s.changeRole(ctx, actorID, target, models.RoleModerator, &collegeID, models.AuditActionModeratorAssign, meta)
}

// RevokeModerator returns a moderator to the role their email domain grants.
func (s *UserService) RevokeModerator(ctx context.Context, actorID, userID string, meta models.RequestMeta) (*models.UserInfo, error) {
	if err := requireAdmin(ctx, s.identity, actorID); err != nil {
		return nil, err
	}
	target, err := s.identity.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if target.Role != models.RoleModerator {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "user is not a moderator")
	}

	role, collegeID, err := roleForEmail(ctx, s.colleges, target.Email)
	if err != nil {
		return nil, err
	}
	return s.changeRole(ctx, actorID, target, role, collegeID, models.AuditActionModeratorRevoke, meta)
}

func (s *UserService) changeRole(ctx context.Context, actorID string, target *models.User, role models.UserRole, collegeID *string, action string, meta models.RequestMeta) (*models.UserInfo, error) {
	before := userInfo(target)
	if err := s.repo.UpdateRole(ctx, target.ID, role, collegeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to update user role")
	}
	target.Role = role
	target.CollegeID = collegeID
	after := userInfo(target)

	writeAudit(ctx, s.repo, s.logger, &models.AuditLog{
		UserID:    &actorID,
		Action:    action,
		Entity:    "user",
		EntityID:  &target.ID,
		OldValues: marshalAudit(before),
		NewValues: marshalAudit(after),
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	return &after, nil
}

// roleForEmail derives the role an email address earns on its own: COLLEGE_USER of the college
// owning its domain, GENERAL_USER otherwise.
func roleForEmail(ctx context.Context, colleges userCollegeRepository, email string) (models.UserRole, *string, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return models.RoleGeneralUser, nil, nil
	}
	college, err := colleges.FindByEmailDomain(ctx, email[at+1:])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RoleGeneralUser, nil, nil
		}
		return "", nil, appErrors.Internal(err, "failed to look up email domain")
	}
	collegeID := college.ID
	return models.RoleCollegeUser, &collegeID, nil
}

func userInfo(user *models.User) models.UserInfo {
	return models.UserInfo{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      user.Role,
		CollegeID: user.CollegeID,
	}
}
