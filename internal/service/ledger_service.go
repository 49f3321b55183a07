package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/collegehub-api/internal/dto"
	"github.com/noah-isme/collegehub-api/internal/models"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
	"github.com/noah-isme/collegehub-api/pkg/export"
)

type ledgerRepository interface {
	Find(ctx context.Context, userID, resourceID string, accessType models.AccessType) (*models.ResourceAccess, error)
	InsertIfAbsent(ctx context.Context, access *models.ResourceAccess) (*models.ResourceAccess, bool, error)
	ListByUser(ctx context.Context, userID string, accessType *models.AccessType) ([]models.ResourceAccess, error)
}

type ledgerResourceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Resource, error)
}

// LedgerService records and reports resource unlocks. PAID rows are written only by a completed
// payment; RecordAccess tracks free access and reports existing paid unlocks.
type LedgerService struct {
	identity  identityResolver
	resources ledgerResourceRepository
	repo      ledgerRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(identity identityResolver, resources ledgerResourceRepository, repo ledgerRepository, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		identity:  identity,
		resources: resources,
		repo:      repo,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordAccess idempotently records that userID opened resourceID. It returns nil when nothing is
// tracked for the pair, which is the case for an admin opening another college's file.
func (s *LedgerService) RecordAccess(ctx context.Context, userID, resourceID string) (*models.ResourceAccess, error) {
	user, err := s.identity.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Internal(err, "failed to load resource")
	}
	return s.RecordFor(ctx, user, resource)
}

// RecordFor is RecordAccess for already loaded records.
func (s *LedgerService) RecordFor(ctx context.Context, user *models.User, resource *models.Resource) (*models.ResourceAccess, error) {
	switch Classify(user, resource) {
	case RuleOwnCollege, RuleAdmin:
		if !user.BelongsTo(resource.CollegeID) {
			return nil, nil
		}
		access, created, err := s.repo.InsertIfAbsent(ctx, &models.ResourceAccess{
			UserID:     user.ID,
			ResourceID: resource.ID,
			AccessType: models.AccessTypeOwnCollege,
			UnlockedAt: s.now(),
		})
		if err != nil {
			return nil, appErrors.Internal(err, "failed to record access")
		}
		if created {
			s.logger.Debug("access recorded", zap.String("user_id", user.ID), zap.String("resource_id", resource.ID))
		}
		return access, nil
	case RuleCrossCollege:
		access, err := s.repo.Find(ctx, user.ID, resource.ID, models.AccessTypePaid)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "payment required to unlock resource")
			}
			return nil, appErrors.Internal(err, "failed to read access ledger")
		}
		return access, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Resource access requires college email")
	}
}

// QueryByUser lists userID's unlocks newest first, optionally filtered by access type.
func (s *LedgerService) QueryByUser(ctx context.Context, userID string, accessType *models.AccessType) ([]dto.AccessHistoryItem, error) {
	if accessType != nil && !accessType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "invalid access type")
	}
	if _, err := s.identity.ResolveUser(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByUser(ctx, userID, accessType)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list access history")
	}
	items := make([]dto.AccessHistoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.AccessHistoryItem{
			ResourceID:    row.ResourceID,
			AccessType:    row.AccessType,
			PaymentAmount: row.PaymentAmount,
			UnlockedAt:    row.UnlockedAt,
		})
	}
	return items, nil
}

// ExportHistory renders the access history as a downloadable document.
func (s *LedgerService) ExportHistory(ctx context.Context, userID string, accessType *models.AccessType, format export.Format) ([]byte, string, error) {
	items, err := s.QueryByUser(ctx, userID, accessType)
	if err != nil {
		return nil, "", err
	}

	table := export.Table{
		Title:   "Access history",
		Headers: []string{"Resource", "Access type", "Amount", "Unlocked at"},
		Rows:    make([][]string, 0, len(items)),
		Footer:  fmt.Sprintf("Generated %s", s.now().Format(time.RFC3339)),
	}
	var total float64
	for _, item := range items {
		amount := ""
		if item.PaymentAmount != nil {
			amount = strconv.FormatFloat(*item.PaymentAmount, 'f', 2, 64)
			total += *item.PaymentAmount
		}
		table.Rows = append(table.Rows, []string{item.ResourceID, string(item.AccessType), amount, item.UnlockedAt.Format(time.RFC3339)})
	}
	if total > 0 {
		table.Footer = fmt.Sprintf("Total paid %s. %s", strconv.FormatFloat(total, 'f', 2, 64), table.Footer)
	}

	data, err := export.Render(format, table)
	if err != nil {
		return nil, "", appErrors.Internal(err, "failed to render access history")
	}
	filename := fmt.Sprintf("access-history-%s.%s", s.now().Format("20060102"), format)
	return data, filename, nil
}
