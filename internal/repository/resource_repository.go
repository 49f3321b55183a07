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

const resourceColumns = `id, college_id, resource_type, department, batch, file_name, file_url, description, uploaded_by, upload_date`

// ResourceRepository persists resource metadata.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository constructs the repository.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// ListByCollege returns all resources of a college in upload order.
func (r *ResourceRepository) ListByCollege(ctx context.Context, collegeID string) ([]models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE college_id = $1 ORDER BY upload_date ASC`
	resources := make([]models.Resource, 0)
	if err := r.db.SelectContext(ctx, &resources, query, collegeID); err != nil {
		return nil, fmt.Errorf("list resources by college: %w", err)
	}
	return resources, nil
}

// FindByID returns a resource or sql.ErrNoRows.
func (r *ResourceRepository) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`
	var resource models.Resource
	if err := r.db.GetContext(ctx, &resource, query, id); err != nil {
		if err == sql.ErrNoRows || isInvalidText(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find resource: %w", err)
	}
	return &resource, nil
}

// Create inserts a resource.
func (r *ResourceRepository) Create(ctx context.Context, resource *models.Resource) error {
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	if resource.UploadDate.IsZero() {
		resource.UploadDate = time.Now().UTC()
	}
	const query = `INSERT INTO resources (id, college_id, resource_type, department, batch, file_name, file_url, description, uploaded_by, upload_date) VALUES (:id, :college_id, :resource_type, :department, :batch, :file_name, :file_url, :description, :uploaded_by, :upload_date)`
	if _, err := r.db.NamedExecContext(ctx, query, resource); err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}

// Delete removes a resource.
func (r *ResourceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		if isInvalidText(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("delete resource: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
