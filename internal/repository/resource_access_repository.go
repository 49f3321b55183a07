package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/collegehub-api/internal/models"
)

const accessColumns = `id, user_id, resource_id, access_type, payment_amount, unlocked_at`

// ResourceAccessRepository is the append-only unlock ledger.
// Uniqueness of (user_id, resource_id, access_type) is enforced by the table's unique key.
type ResourceAccessRepository struct {
	db *sqlx.DB
}

// NewResourceAccessRepository constructs the repository.
func NewResourceAccessRepository(db *sqlx.DB) *ResourceAccessRepository {
	return &ResourceAccessRepository{db: db}
}

// Find returns the record for the key or sql.ErrNoRows.
func (r *ResourceAccessRepository) Find(ctx context.Context, userID, resourceID string, accessType models.AccessType) (*models.ResourceAccess, error) {
	return findAccess(ctx, r.db, userID, resourceID, accessType)
}

// Exists reports whether a record exists for the key.
func (r *ResourceAccessRepository) Exists(ctx context.Context, userID, resourceID string, accessType models.AccessType) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM resource_accesses WHERE user_id = $1 AND resource_id = $2 AND access_type = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, resourceID, accessType); err != nil {
		return false, fmt.Errorf("check resource access: %w", err)
	}
	return exists, nil
}

// InsertIfAbsent atomically stores the record unless one already exists for its key.
// It returns the stored row and whether this call created it.
func (r *ResourceAccessRepository) InsertIfAbsent(ctx context.Context, access *models.ResourceAccess) (*models.ResourceAccess, bool, error) {
	return insertAccessIfAbsent(ctx, r.db, access)
}

// UnlockedResourceIDs returns the ids of collegeID's resources that userID holds an accessType record for.
func (r *ResourceAccessRepository) UnlockedResourceIDs(ctx context.Context, userID, collegeID string, accessType models.AccessType) (map[string]struct{}, error) {
	const query = `SELECT ra.resource_id FROM resource_accesses ra
JOIN resources res ON res.id = ra.resource_id
WHERE ra.user_id = $1 AND res.college_id = $2 AND ra.access_type = $3`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID, collegeID, accessType); err != nil {
		return nil, fmt.Errorf("list unlocked resources: %w", err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// ListByUser returns the user's records most-recent-first, optionally filtered by access type.
func (r *ResourceAccessRepository) ListByUser(ctx context.Context, userID string, accessType *models.AccessType) ([]models.ResourceAccess, error) {
	query := `SELECT ` + accessColumns + ` FROM resource_accesses WHERE user_id = $1`
	args := []interface{}{userID}
	if accessType != nil {
		query += ` AND access_type = $2`
		args = append(args, *accessType)
	}
	query += ` ORDER BY unlocked_at DESC`

	records := make([]models.ResourceAccess, 0)
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list resource accesses: %w", err)
	}
	return records, nil
}

func findAccess(ctx context.Context, q sqlx.QueryerContext, userID, resourceID string, accessType models.AccessType) (*models.ResourceAccess, error) {
	query := `SELECT ` + accessColumns + ` FROM resource_accesses WHERE user_id = $1 AND resource_id = $2 AND access_type = $3`
	var access models.ResourceAccess
	if err := sqlx.GetContext(ctx, q, &access, query, userID, resourceID, accessType); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find resource access: %w", err)
	}
	return &access, nil
}

func insertAccessIfAbsent(ctx context.Context, q sqlx.ExtContext, access *models.ResourceAccess) (*models.ResourceAccess, bool, error) {
	if access.ID == "" {
		access.ID = uuid.NewString()
	}
	if access.UnlockedAt.IsZero() {
		access.UnlockedAt = time.Now().UTC()
	}
	const query = `INSERT INTO resource_accesses (id, user_id, resource_id, access_type, payment_amount, unlocked_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, resource_id, access_type) DO NOTHING`
	res, err := q.ExecContext(ctx, query, access.ID, access.UserID, access.ResourceID, access.AccessType, access.PaymentAmount, access.UnlockedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert resource access: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert resource access: %w", err)
	}
	if n == 1 {
		return access, true, nil
	}
	existing, err := findAccess(ctx, q, access.UserID, access.ResourceID, access.AccessType)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
