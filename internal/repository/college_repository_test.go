package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/collegehub-api/internal/models"
)

func TestCollegeFindByEmailDomain(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCollegeRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "email_domain", "logo_url", "created_at"}).
		AddRow("c1", "IIT Bombay", "iitb.ac.in", nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email_domain, logo_url, created_at FROM colleges WHERE email_domain = $1")).
		WithArgs("iitb.ac.in").
		WillReturnRows(rows)

	college, err := repo.FindByEmailDomain(context.Background(), "IITB.ac.in")
	require.NoError(t, err)
	assert.Equal(t, "IIT Bombay", college.Name)
	assert.Nil(t, college.LogoURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollegeCreateNormalisesDomain(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCollegeRepository(db)

	mock.ExpectExec("INSERT INTO colleges").
		WithArgs(sqlmock.AnyArg(), "NIT Trichy", "nitt.edu", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	college := &models.College{Name: "NIT Trichy", EmailDomain: "NITT.EDU"}
	require.NoError(t, repo.Create(context.Background(), college))
	assert.NotEmpty(t, college.ID)
	assert.Equal(t, "nitt.edu", college.EmailDomain)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollegeCreateDuplicateDomain(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCollegeRepository(db)

	mock.ExpectExec("INSERT INTO colleges").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &models.College{Name: "NIT Trichy", EmailDomain: "nitt.edu"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollegeList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCollegeRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "email_domain", "logo_url", "created_at"}).
		AddRow("c1", "A College", "a.edu", "https://a.edu/logo.png", time.Now()).
		AddRow("c2", "B College", "b.edu", nil, time.Now())
	mock.ExpectQuery("FROM colleges ORDER BY name ASC").WillReturnRows(rows)

	colleges, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, colleges, 2)
	require.NotNil(t, colleges[0].LogoURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollegeDeleteDemotesAffiliatedUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCollegeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role = $1, college_id = NULL, updated_at = NOW() WHERE college_id = $2 AND role IN ($3, $4)")).
		WithArgs(models.RoleGeneralUser, "c1", models.RoleCollegeUser, models.RoleModerator).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET college_id = NULL, updated_at = NOW() WHERE college_id = $1 AND role = $2")).
		WithArgs("c1", models.RoleAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM colleges WHERE id = $1")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollegeDeleteMissingRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCollegeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET role").
		WithArgs(models.RoleGeneralUser, "missing", models.RoleCollegeUser, models.RoleModerator).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE users SET college_id").WithArgs("missing", models.RoleAdmin).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM colleges").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollegeDeleteMalformedIDIsMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCollegeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET role").WillReturnError(&pq.Error{Code: "22P02"})
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCollegeFindByIDMalformedIDIsMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCollegeRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM colleges WHERE id").
		WithArgs("not-a-uuid").
		WillReturnError(&pq.Error{Code: "22P02"})

	college, err := repo.FindByID(context.Background(), "not-a-uuid")
	assert.Nil(t, college)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
