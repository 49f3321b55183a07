package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/collegehub-api/internal/dto"
	"github.com/noah-isme/collegehub-api/internal/models"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
	"github.com/noah-isme/collegehub-api/pkg/storage"
)

type resourceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	Create(ctx context.Context, resource *models.Resource) error
	Delete(ctx context.Context, id string) error
}

type resourceCollegeRepository interface {
	FindByID(ctx context.Context, id string) (*models.College, error)
}

type accessRecorder interface {
	RecordFor(ctx context.Context, user *models.User, resource *models.Resource) (*models.ResourceAccess, error)
}

type downloadSigner interface {
	Issue(resourceID, userID string) (string, time.Time, error)
	Verify(token, userID string) (*storage.DownloadGrant, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ResourceService serves, uploads and deletes library files.
type ResourceService struct {
	identity  identityResolver
	colleges  resourceCollegeRepository
	resources resourceRepository
	access    accessEvaluator
	ledger    accessRecorder
	signer    downloadSigner
	audit     auditLogger
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResourceService constructs a ResourceService.
func NewResourceService(identity identityResolver, colleges resourceCollegeRepository, resources resourceRepository, access accessEvaluator, ledger accessRecorder, signer downloadSigner, audit auditLogger, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ResourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ResourceService{
		identity:  identity,
		colleges:  colleges,
		resources: resources,
		access:    access,
		ledger:    ledger,
		signer:    signer,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// GetResourceFile returns the full file view when the caller may open it, recording the access.
func (s *ResourceService) GetResourceFile(ctx context.Context, fileID, userID string) (*dto.FileView, error) {
	user, err := s.identity.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	resource, err := s.findResource(ctx, fileID)
	if err != nil {
		return nil, err
	}

	verdict, err := s.access.Evaluate(ctx, user, resource)
	if err != nil {
		return nil, err
	}
	if !verdict.CanAccess {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Resource access requires college email")
	}
	if verdict.RequiresPayment && !verdict.IsUnlocked {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment required to unlock resource")
	}

	accessType := models.AccessTypeOwnCollege
	switch {
	case verdict.RequiresPayment:
		accessType = models.AccessTypePaid
	case Classify(user, resource) == RuleAdmin && !user.BelongsTo(resource.CollegeID):
		accessType = models.AccessTypeAdmin
	}
	record, err := s.ledger.RecordFor(ctx, user, resource)
	if err != nil {
		s.logger.Warn("failed to record resource access",
			zap.String("user_id", user.ID), zap.String("resource_id", resource.ID), zap.Error(err))
	} else if record != nil {
		accessType = record.AccessType
	}

	token, expiresAt, err := s.signer.Issue(resource.ID, user.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to issue download token")
	}

	return &dto.FileView{
		ID:            resource.ID,
		CollegeID:     resource.CollegeID,
		ResourceType:  resource.ResourceType,
		Department:    resource.Department,
		Batch:         resource.Batch,
		FileName:      resource.FileName,
		Description:   resource.Description,
		UploadedBy:    resource.UploadedBy,
		UploadDate:    resource.UploadDate,
		AccessType:    accessType,
		DownloadToken: token,
		TokenExpires:  expiresAt,
	}, nil
}

// ResolveDownload redeems a download token for the file location. Access is evaluated again so a
// token outlives neither a role change nor a deleted resource.
func (s *ResourceService) ResolveDownload(ctx context.Context, token, userID string) (string, error) {
	grant, err := s.signer.Verify(token, userID)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return "", appErrors.Clone(appErrors.ErrUnauthorized, "download token expired")
		}
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	user, err := s.identity.ResolveUser(ctx, userID)
	if err != nil {
		return "", err
	}
	resource, err := s.findResource(ctx, grant.ResourceID)
	if err != nil {
		return "", err
	}
	verdict, err := s.access.Evaluate(ctx, user, resource)
	if err != nil {
		return "", err
	}
	if !verdict.CanAccess || (verdict.RequiresPayment && !verdict.IsUnlocked) {
		return "", appErrors.Clone(appErrors.ErrForbidden, "access to resource revoked")
	}
	return resource.FileURL, nil
}

// Upload stores a new resource under collegeID. Admins may upload anywhere, moderators only to
// their own college.
func (s *ResourceService) Upload(ctx context.Context, uploaderID, collegeID string, req dto.UploadResourceRequest, meta models.RequestMeta) (*models.Resource, error) {
	req.Department = strings.TrimSpace(req.Department)
	req.Batch = strings.TrimSpace(req.Batch)
	req.FileName = strings.TrimSpace(req.FileName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}

	uploader, err := s.identity.ResolveUser(ctx, uploaderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.colleges.FindByID(ctx, collegeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return nil, appErrors.Internal(err, "failed to load college")
	}

	switch uploader.Role {
	case models.RoleAdmin:
	case models.RoleModerator:
		if !uploader.BelongsTo(collegeID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "moderators can only upload to assigned college")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only moderators and admins can upload resources")
	}

	resource := &models.Resource{
		ID:           uuid.NewString(),
		CollegeID:    collegeID,
		ResourceType: req.ResourceType,
		Department:   req.Department,
		Batch:        req.Batch,
		FileName:     req.FileName,
		FileURL:      req.FileURL,
		Description:  req.Description,
		UploadedBy:   uploader.ID,
		UploadDate:   time.Now().UTC(),
	}
	if err := s.resources.Create(ctx, resource); err != nil {
		return nil, appErrors.Internal(err, "failed to create resource")
	}

	_ = s.cache.Invalidate(ctx, CollegeResourcesKey(collegeID))
	s.recordAudit(ctx, uploader.ID, models.AuditActionResourceUpload, resource.ID, nil, resource, meta)
	return resource, nil
}

// Delete removes a resource. Only its uploader or an admin may do so.
func (s *ResourceService) Delete(ctx context.Context, resourceID, userID string, meta models.RequestMeta) error {
	user, err := s.identity.ResolveUser(ctx, userID)
	if err != nil {
		return err
	}
	resource, err := s.findResource(ctx, resourceID)
	if err != nil {
		return err
	}
	if user.Role != models.RoleAdmin && resource.UploadedBy != user.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader or an admin can delete this resource")
	}

	if err := s.resources.Delete(ctx, resource.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return appErrors.Internal(err, "failed to delete resource")
	}

	_ = s.cache.Invalidate(ctx, CollegeResourcesKey(resource.CollegeID))
	s.recordAudit(ctx, user.ID, models.AuditActionResourceDelete, resource.ID, resource, nil, meta)
	return nil
}

func (s *ResourceService) findResource(ctx context.Context, id string) (*models.Resource, error) {
	resource, err := s.resources.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Internal(err, "failed to load resource")
	}
	return resource, nil
}

func (s *ResourceService) recordAudit(ctx context.Context, actorID, action, entityID string, oldValue, newValue interface{}, meta models.RequestMeta) {
	writeAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:    &actorID,
		Action:    action,
		Entity:    "resource",
		EntityID:  &entityID,
		OldValues: marshalAudit(oldValue),
		NewValues: marshalAudit(newValue),
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
}

// writeAudit persists an audit row; failures are logged and never fail the operation.
func writeAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, log *models.AuditLog) {
	if audit == nil {
		return
	}
	if err := audit.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func marshalAudit(value interface{}) []byte {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return data
}
