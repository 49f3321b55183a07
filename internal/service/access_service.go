package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/collegehub-api/internal/dto"
	"github.com/noah-isme/collegehub-api/internal/models"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
)

// AccessRule is the row of the precedence table that decided a verdict.
type AccessRule string

const (
	RuleDenied       AccessRule = "denied"
	RuleAdmin        AccessRule = "admin"
	RuleOwnCollege   AccessRule = "own_college"
	RuleCrossCollege AccessRule = "cross_college"
)

// Classify picks the first matching rule, in order: missing party, GUEST or GENERAL_USER, ADMIN,
// same college, other college.
func Classify(user *models.User, resource *models.Resource) AccessRule {
	switch {
	case user == nil || resource == nil:
		return RuleDenied
	case !user.Role.HasResourceAccess():
		return RuleDenied
	case user.Role == models.RoleAdmin:
		return RuleAdmin
	case user.BelongsTo(resource.CollegeID):
		return RuleOwnCollege
	default:
		return RuleCrossCollege
	}
}

// Result maps the rule to a verdict. paid only matters for cross-college access.
func (r AccessRule) Result(paid bool) dto.AccessResult {
	switch r {
	case RuleAdmin, RuleOwnCollege:
		return dto.AccessResult{CanAccess: true, RequiresPayment: false, IsUnlocked: true}
	case RuleCrossCollege:
		return dto.AccessResult{CanAccess: true, RequiresPayment: true, IsUnlocked: paid}
	default:
		return dto.AccessResult{}
	}
}

type accessResourceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Resource, error)
}

type accessLedgerRepository interface {
	Exists(ctx context.Context, userID, resourceID string, accessType models.AccessType) (bool, error)
}

type identityResolver interface {
	ResolveUser(ctx context.Context, userID string) (*models.User, error)
}

// AccessService answers whether a user may open a resource.
type AccessService struct {
	identity  identityResolver
	resources accessResourceRepository
	ledger    accessLedgerRepository
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewAccessService constructs the evaluator.
func NewAccessService(identity identityResolver, resources accessResourceRepository, ledger accessLedgerRepository, metrics *MetricsService, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{identity: identity, resources: resources, ledger: ledger, metrics: metrics, logger: logger}
}

// CanAccessResource never fails: a missing user, missing resource or storage error yields the
// all-false verdict.
func (s *AccessService) CanAccessResource(ctx context.Context, userID, resourceID string) dto.AccessResult {
	user, err := s.identity.ResolveUser(ctx, userID)
	if err != nil {
		s.logLookupFailure("user", userID, err)
		return dto.AccessResult{}
	}
	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("access check could not load resource", zap.String("resource_id", resourceID), zap.Error(err))
		}
		return dto.AccessResult{}
	}
	result, err := s.Evaluate(ctx, user, resource)
	if err != nil {
		s.logger.Warn("access check could not read ledger",
			zap.String("user_id", userID), zap.String("resource_id", resourceID), zap.Error(err))
		return dto.AccessResult{}
	}
	return result
}

// Evaluate applies the precedence table to already loaded records. The ledger is consulted only
// for cross-college access.
func (s *AccessService) Evaluate(ctx context.Context, user *models.User, resource *models.Resource) (dto.AccessResult, error) {
	rule := Classify(user, resource)
	s.metrics.RecordAccessDecision(string(rule))
	if rule != RuleCrossCollege {
		return rule.Result(false), nil
	}
	paid, err := s.ledger.Exists(ctx, user.ID, resource.ID, models.AccessTypePaid)
	if err != nil {
		return dto.AccessResult{}, appErrors.Internal(err, "failed to read access ledger")
	}
	return rule.Result(paid), nil
}

func (s *AccessService) logLookupFailure(entity, id string, err error) {
	if errors.Is(err, appErrors.ErrNotFound) {
		return
	}
	s.logger.Warn("access check could not load "+entity, zap.String("id", id), zap.Error(err))
}
