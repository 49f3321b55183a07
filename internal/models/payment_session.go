package models

import "time"

// PaymentStatus moves from PENDING to exactly one terminal state.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusExpired   PaymentStatus = "EXPIRED"
)

// IsTerminal reports whether no further transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusExpired
}

// PaymentSession is a time-boxed intent to unlock one resource.
type PaymentSession struct {
	SessionID   string        `db:"session_id" json:"session_id"`
	UserID      string        `db:"user_id" json:"user_id"`
	ResourceID  string        `db:"resource_id" json:"resource_id"`
	Amount      float64       `db:"amount" json:"amount"`
	Currency    string        `db:"currency" json:"currency"`
	Status      PaymentStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time     `db:"expires_at" json:"expires_at"`
	CompletedAt *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
}

// ExpiredAt reports whether the session is past its deadline at now.
func (p *PaymentSession) ExpiredAt(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
