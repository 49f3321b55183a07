package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/collegehub-api/internal/models"
)

var sessionRowColumns = []string{"session_id", "user_id", "resource_id", "amount", "currency", "status", "created_at", "expires_at", "completed_at"}

func newCandidate(now time.Time) *models.PaymentSession {
	return &models.PaymentSession{
		SessionID:  "ps_new",
		UserID:     "u1",
		ResourceID: "r1",
		Amount:     10,
		Currency:   "USD",
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Hour),
	}
}

func TestCreateOrGetPendingInserts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentSessionRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payment_sessions SET status = 'EXPIRED'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("status = 'PENDING' AND expires_at > \\$3").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id, resource_id) WHERE status = 'PENDING' DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	session, reused, err := repo.CreateOrGetPending(context.Background(), newCandidate(now))
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, "ps_new", session.SessionID)
	assert.Equal(t, models.PaymentStatusPending, session.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrGetPendingReusesLiveSession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentSessionRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payment_sessions SET status = 'EXPIRED'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow("ps_old", "u1", "r1", 10.0, "USD", "PENDING", now.Add(-time.Minute), now.Add(59*time.Minute), nil))
	mock.ExpectCommit()

	session, reused, err := repo.CreateOrGetPending(context.Background(), newCandidate(now))
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, "ps_old", session.SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrGetPendingLosesRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentSessionRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payment_sessions SET status = 'EXPIRED'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO payment_sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM payment_sessions").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow("ps_winner", "u1", "r1", 10.0, "USD", "PENDING", now, now.Add(time.Hour), nil))
	mock.ExpectCommit()

	session, reused, err := repo.CreateOrGetPending(context.Background(), newCandidate(now))
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, "ps_winner", session.SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkStatusOnlyFromPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payment_sessions SET status = $2 WHERE session_id = $1 AND status = 'PENDING'")).
		WithArgs("ps_1", string(models.PaymentStatusExpired)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkStatus(context.Background(), "ps_1", models.PaymentStatusExpired)
	assert.ErrorIs(t, err, ErrSessionNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteWithUnlockWritesAccessAndStatusAtomically(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentSessionRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM payment_sessions WHERE session_id = \\$1 FOR UPDATE").
		WithArgs("ps_1").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow("ps_1", "u1", "r1", 10.0, "USD", "PENDING", now.Add(-time.Minute), now.Add(time.Hour), nil))
	mock.ExpectExec("INSERT INTO resource_accesses").
		WithArgs(sqlmock.AnyArg(), "u1", "r1", string(models.AccessTypePaid), 10.0, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payment_sessions SET status = 'COMPLETED'").
		WithArgs("ps_1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	session, err := repo.CompleteWithUnlock(context.Background(), "ps_1", now)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, session.Status)
	require.NotNil(t, session.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteWithUnlockKeepsExistingAccessRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentSessionRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow("ps_2", "u1", "r1", 10.0, "USD", "PENDING", now, now.Add(time.Hour), nil))
	mock.ExpectExec("INSERT INTO resource_accesses").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM resource_accesses WHERE user_id").
		WillReturnRows(sqlmock.NewRows(accessRowColumns).AddRow("a1", "u1", "r1", "PAID", 10.0, now.Add(-time.Hour)))
	mock.ExpectExec("UPDATE payment_sessions SET status = 'COMPLETED'").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.CompleteWithUnlock(context.Background(), "ps_2", now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteWithUnlockRejectsTerminalSession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentSessionRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).
			AddRow("ps_3", "u1", "r1", 10.0, "USD", "COMPLETED", now, now.Add(time.Hour), now))
	mock.ExpectRollback()

	_, err := repo.CompleteWithUnlock(context.Background(), "ps_3", now)
	assert.ErrorIs(t, err, ErrSessionNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}
