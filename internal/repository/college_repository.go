package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/collegehub-api/internal/models"
	"github.com/noah-isme/collegehub-api/pkg/database"
)

const collegeColumns = `id, name, email_domain, logo_url, created_at`

// CollegeRepository persists approved colleges.
type CollegeRepository struct {
	db *sqlx.DB
}

// NewCollegeRepository constructs the repository.
func NewCollegeRepository(db *sqlx.DB) *CollegeRepository {
	return &CollegeRepository{db: db}
}

// List returns every college ordered by name.
func (r *CollegeRepository) List(ctx context.Context) ([]models.College, error) {
	query := `SELECT ` + collegeColumns + ` FROM colleges ORDER BY name ASC`
	var colleges []models.College
	if err := r.db.SelectContext(ctx, &colleges, query); err != nil {
		return nil, fmt.Errorf("list colleges: %w", err)
	}
	return colleges, nil
}

// FindByID returns a college or sql.ErrNoRows.
func (r *CollegeRepository) FindByID(ctx context.Context, id string) (*models.College, error) {
	query := `SELECT ` + collegeColumns + ` FROM colleges WHERE id = $1`
	var college models.College
	if err := r.db.GetContext(ctx, &college, query, id); err != nil {
		if err == sql.ErrNoRows || isInvalidText(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find college: %w", err)
	}
	return &college, nil
}

// FindByEmailDomain resolves an institutional email domain.
func (r *CollegeRepository) FindByEmailDomain(ctx context.Context, domain string) (*models.College, error) {
	query := `SELECT ` + collegeColumns + ` FROM colleges WHERE email_domain = $1`
	var college models.College
	if err := r.db.GetContext(ctx, &college, query, strings.ToLower(domain)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find college by domain: %w", err)
	}
	return &college, nil
}

// Create inserts a college.
func (r *CollegeRepository) Create(ctx context.Context, college *models.College) error {
	if college.ID == "" {
		college.ID = uuid.NewString()
	}
	if college.CreatedAt.IsZero() {
		college.CreatedAt = time.Now().UTC()
	}
	college.EmailDomain = strings.ToLower(college.EmailDomain)
	const query = `INSERT INTO colleges (id, name, email_domain, logo_url, created_at) VALUES (:id, :name, :email_domain, :logo_url, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, college); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create college: %w", err)
	}
	return nil
}

// Delete removes a college. Its college users and moderators fall back to GENERAL_USER in the same
// transaction while admins only lose the affiliation; resources and their ledger rows go with the
// college through ON DELETE CASCADE.
func (r *CollegeRepository) Delete(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const demote = `UPDATE users SET role = $1, college_id = NULL, updated_at = NOW() WHERE college_id = $2 AND role IN ($3, $4)`
		if _, err := tx.ExecContext(ctx, demote, models.RoleGeneralUser, id, models.RoleCollegeUser, models.RoleModerator); err != nil {
			if isInvalidText(err) {
				return sql.ErrNoRows
			}
			return fmt.Errorf("demote college users: %w", err)
		}
		const detach = `UPDATE users SET college_id = NULL, updated_at = NOW() WHERE college_id = $1 AND role = $2`
		if _, err := tx.ExecContext(ctx, detach, id, models.RoleAdmin); err != nil {
			return fmt.Errorf("detach college admins: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM colleges WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete college: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}
