package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/collegehub-api/internal/dto"
	"github.com/noah-isme/collegehub-api/internal/models"
	"github.com/noah-isme/collegehub-api/internal/repository"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
)

type collegeRepository interface {
	List(ctx context.Context) ([]models.College, error)
	FindByID(ctx context.Context, id string) (*models.College, error)
	FindByEmailDomain(ctx context.Context, domain string) (*models.College, error)
	Create(ctx context.Context, college *models.College) error
	Delete(ctx context.Context, id string) error
}

// CollegeService manages the set of approved colleges.
type CollegeService struct {
	identity  identityResolver
	repo      collegeRepository
	audit     auditLogger
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCollegeService constructs a CollegeService.
func NewCollegeService(identity identityResolver, repo collegeRepository, audit auditLogger, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CollegeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CollegeService{identity: identity, repo: repo, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns every approved college ordered by name.
func (s *CollegeService) List(ctx context.Context) ([]models.College, error) {
	colleges, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list colleges")
	}
	return colleges, nil
}

// Get returns a single college.
func (s *CollegeService) Get(ctx context.Context, id string) (*models.College, error) {
	college, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return nil, appErrors.Internal(err, "failed to load college")
	}
	return college, nil
}

// Approve registers a college and its email domain. Admin only.
func (s *CollegeService) Approve(ctx context.Context, actorID string, req dto.ApproveCollegeRequest, meta models.RequestMeta) (*models.College, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.EmailDomain = strings.ToLower(strings.TrimSpace(req.EmailDomain))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid college payload")
	}
	if err := requireAdmin(ctx, s.identity, actorID); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmailDomain(ctx, req.EmailDomain); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email domain already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check email domain")
	}

	college := &models.College{Name: req.Name, EmailDomain: req.EmailDomain, LogoURL: req.LogoURL}
	if err := s.repo.Create(ctx, college); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "college already exists")
		}
		return nil, appErrors.Internal(err, "failed to create college")
	}

	writeAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:    &actorID,
		Action:    models.AuditActionCollegeApprove,
		Entity:    "college",
		EntityID:  &college.ID,
		NewValues: marshalAudit(college),
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	return college, nil
}

// Remove deletes a college together with its resources. Admin only.
func (s *CollegeService) Remove(ctx context.Context, actorID, collegeID string, meta models.RequestMeta) error {
	if err := requireAdmin(ctx, s.identity, actorID); err != nil {
		return err
	}
	college, err := s.Get(ctx, collegeID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, college.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return appErrors.Internal(err, "failed to delete college")
	}

	_ = s.cache.Invalidate(ctx, CollegeResourcesKey(college.ID))
	writeAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:    &actorID,
		Action:    models.AuditActionCollegeRemove,
		Entity:    "college",
		EntityID:  &college.ID,
		OldValues: marshalAudit(college),
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	return nil
}

func requireAdmin(ctx context.Context, identity identityResolver, actorID string) error {
	actor, err := identity.ResolveUser(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	return nil
}
