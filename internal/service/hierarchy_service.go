package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/collegehub-api/internal/dto"
	"github.com/noah-isme/collegehub-api/internal/models"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
)

type hierarchyCollegeRepository interface {
	FindByID(ctx context.Context, id string) (*models.College, error)
}

type hierarchyResourceRepository interface {
	ListByCollege(ctx context.Context, collegeID string) ([]models.Resource, error)
}

type hierarchyLedgerRepository interface {
	UnlockedResourceIDs(ctx context.Context, userID, collegeID string, accessType models.AccessType) (map[string]struct{}, error)
}

// HierarchyService assembles the browsable tree of a college's resources.
type HierarchyService struct {
	identity  identityResolver
	colleges  hierarchyCollegeRepository
	resources hierarchyResourceRepository
	ledger    hierarchyLedgerRepository
	cache     *CacheService
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewHierarchyService constructs the builder. cache may be nil.
func NewHierarchyService(identity identityResolver, colleges hierarchyCollegeRepository, resources hierarchyResourceRepository, ledger hierarchyLedgerRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *HierarchyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HierarchyService{
		identity:  identity,
		colleges:  colleges,
		resources: resources,
		ledger:    ledger,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Build returns the College → ResourceType → Department → Batch → File tree for collegeID as seen
// by userID. Only non-empty groups appear and every resource is placed exactly once.
func (s *HierarchyService) Build(ctx context.Context, collegeID, userID string) (*dto.HierarchyTree, error) {
	user, err := s.identity.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Role.HasResourceAccess() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Resource access requires college email")
	}

	college, err := s.colleges.FindByID(ctx, collegeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return nil, appErrors.Internal(err, "failed to load college")
	}

	resources, err := s.listResources(ctx, collegeID)
	if err != nil {
		return nil, err
	}

	var unlocked map[string]struct{}
	if user.Role != models.RoleAdmin && !user.BelongsTo(collegeID) && len(resources) > 0 {
		unlocked, err = s.ledger.UnlockedResourceIDs(ctx, user.ID, collegeID, models.AccessTypePaid)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to read access ledger")
		}
	}

	tree := &dto.HierarchyTree{
		College: dto.HierarchyCollege{ID: college.ID, Name: college.Name, LogoURL: college.LogoURL},
	}
	tree.ResourceTypes = groupResources(resources, func(r *models.Resource) dto.AccessResult {
		_, paid := unlocked[r.ID]
		return Classify(user, r).Result(paid)
	})
	return tree, nil
}

func (s *HierarchyService) listResources(ctx context.Context, collegeID string) ([]models.Resource, error) {
	key := CollegeResourcesKey(collegeID)
	var cached []models.Resource
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	resources, err := s.resources.ListByCollege(ctx, collegeID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list resources")
	}
	_ = s.cache.Set(ctx, key, resources, s.cacheTTL)
	return resources, nil
}

// groupResources buckets resources by (type, department, batch). Types follow the enum order,
// departments and batches sort by name, files keep their upload order.
func groupResources(resources []models.Resource, verdict func(*models.Resource) dto.AccessResult) []dto.HierarchyResourceType {
	byType := make(map[models.ResourceType]map[string]map[string][]dto.HierarchyFile)
	for i := range resources {
		r := &resources[i]
		departments, ok := byType[r.ResourceType]
		if !ok {
			departments = make(map[string]map[string][]dto.HierarchyFile)
			byType[r.ResourceType] = departments
		}
		batches, ok := departments[r.Department]
		if !ok {
			batches = make(map[string][]dto.HierarchyFile)
			departments[r.Department] = batches
		}
		result := verdict(r)
		batches[r.Batch] = append(batches[r.Batch], dto.HierarchyFile{
			ID:          r.ID,
			Name:        r.FileName,
			UploadedBy:  r.UploadedBy,
			Batch:       r.Batch,
			Description: r.Description,
			UploadDate:  r.UploadDate,
			IsLocked:    !result.CanAccess || (result.RequiresPayment && !result.IsUnlocked),
			IsUnlocked:  result.IsUnlocked,
		})
	}

	types := make([]dto.HierarchyResourceType, 0, len(byType))
	for _, resourceType := range orderedTypes(byType) {
		departments := byType[resourceType]
		node := dto.HierarchyResourceType{Name: string(resourceType)}
		for _, department := range sortedKeys(departments) {
			batches := departments[department]
			deptNode := dto.HierarchyDepartment{Name: department}
			for _, batch := range sortedKeys(batches) {
				deptNode.Batches = append(deptNode.Batches, dto.HierarchyBatch{Name: batch, Files: batches[batch]})
			}
			node.Departments = append(node.Departments, deptNode)
		}
		types = append(types, node)
	}
	return types
}

func orderedTypes[V any](byType map[models.ResourceType]V) []models.ResourceType {
	ordered := make([]models.ResourceType, 0, len(byType))
	for _, known := range models.ResourceTypes {
		if _, ok := byType[known]; ok {
			ordered = append(ordered, known)
		}
	}
	var unknown []models.ResourceType
	for t := range byType {
		if !t.Valid() {
			unknown = append(unknown, t)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return append(ordered, unknown...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
