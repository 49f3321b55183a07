package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/collegehub-api/internal/models"
	"github.com/noah-isme/collegehub-api/pkg/database"
)

const sessionColumns = `session_id, user_id, resource_id, amount, currency, status, created_at, expires_at, completed_at`

// ErrSessionNotPending is returned when a transition finds the session already in a terminal state.
var ErrSessionNotPending = errors.New("payment session is not pending")

// PaymentSessionRepository persists payment sessions. At most one PENDING session may exist per
// (user_id, resource_id); the table carries a partial unique index for it.
type PaymentSessionRepository struct {
	db *sqlx.DB
}

// NewPaymentSessionRepository constructs the repository.
func NewPaymentSessionRepository(db *sqlx.DB) *PaymentSessionRepository {
	return &PaymentSessionRepository{db: db}
}

// FindByID returns a session or sql.ErrNoRows.
func (r *PaymentSessionRepository) FindByID(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE session_id = $1`
	var session models.PaymentSession
	if err := r.db.GetContext(ctx, &session, query, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment session: %w", err)
	}
	return &session, nil
}

// CreateOrGetPending returns the live PENDING session for the candidate's (user, resource) if one
// exists, otherwise stores the candidate. reused reports which branch was taken.
func (r *PaymentSessionRepository) CreateOrGetPending(ctx context.Context, candidate *models.PaymentSession) (session *models.PaymentSession, reused bool, err error) {
	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const expireStale = `UPDATE payment_sessions SET status = 'EXPIRED'
WHERE user_id = $1 AND resource_id = $2 AND status = 'PENDING' AND expires_at <= $3`
		if _, err := tx.ExecContext(ctx, expireStale, candidate.UserID, candidate.ResourceID, candidate.CreatedAt); err != nil {
			return fmt.Errorf("expire stale payment sessions: %w", err)
		}

		live, err := findLivePending(ctx, tx, candidate.UserID, candidate.ResourceID, candidate.CreatedAt, true)
		if err == nil {
			session, reused = live, true
			return nil
		}
		if err != sql.ErrNoRows {
			return err
		}

		const insert = `INSERT INTO payment_sessions (session_id, user_id, resource_id, amount, currency, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id, resource_id) WHERE status = 'PENDING' DO NOTHING`
		res, err := tx.ExecContext(ctx, insert, candidate.SessionID, candidate.UserID, candidate.ResourceID,
			candidate.Amount, candidate.Currency, models.PaymentStatusPending, candidate.CreatedAt, candidate.ExpiresAt)
		if err != nil {
			return fmt.Errorf("insert payment session: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			candidate.Status = models.PaymentStatusPending
			session = candidate
			return nil
		}

		// A concurrent initiate won the insert; hand back its session.
		live, err = findLivePending(ctx, tx, candidate.UserID, candidate.ResourceID, candidate.CreatedAt, false)
		if err != nil {
			return fmt.Errorf("reload concurrent payment session: %w", err)
		}
		session, reused = live, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return session, reused, nil
}

// MarkStatus moves a PENDING session to a terminal status. It returns ErrSessionNotPending when
// the session had already left PENDING.
func (r *PaymentSessionRepository) MarkStatus(ctx context.Context, sessionID string, status models.PaymentStatus) error {
	const query = `UPDATE payment_sessions SET status = $2 WHERE session_id = $1 AND status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, query, sessionID, status)
	if err != nil {
		return fmt.Errorf("update payment session status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment session status: %w", err)
	}
	if n == 0 {
		return ErrSessionNotPending
	}
	return nil
}

// CompleteWithUnlock marks the session COMPLETED and writes the PAID access row in one transaction.
// An already existing PAID row is kept as is.
func (r *PaymentSessionRepository) CompleteWithUnlock(ctx context.Context, sessionID string, completedAt time.Time) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE session_id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &session, query, sessionID); err != nil {
			if err == sql.ErrNoRows {
				return err
			}
			return fmt.Errorf("lock payment session: %w", err)
		}
		if session.Status != models.PaymentStatusPending {
			return ErrSessionNotPending
		}

		amount := session.Amount
		if _, _, err := insertAccessIfAbsent(ctx, tx, &models.ResourceAccess{
			UserID:        session.UserID,
			ResourceID:    session.ResourceID,
			AccessType:    models.AccessTypePaid,
			PaymentAmount: &amount,
			UnlockedAt:    completedAt,
		}); err != nil {
			return err
		}

		const complete = `UPDATE payment_sessions SET status = 'COMPLETED', completed_at = $2 WHERE session_id = $1`
		if _, err := tx.ExecContext(ctx, complete, sessionID, completedAt); err != nil {
			return fmt.Errorf("complete payment session: %w", err)
		}
		session.Status = models.PaymentStatusCompleted
		session.CompletedAt = &completedAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func findLivePending(ctx context.Context, tx *sqlx.Tx, userID, resourceID string, now time.Time, lock bool) (*models.PaymentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions
WHERE user_id = $1 AND resource_id = $2 AND status = 'PENDING' AND expires_at > $3
ORDER BY created_at DESC LIMIT 1`
	if lock {
		query += ` FOR UPDATE`
	}
	var session models.PaymentSession
	if err := tx.GetContext(ctx, &session, query, userID, resourceID, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find pending payment session: %w", err)
	}
	return &session, nil
}
