package models

import "time"

// AccessType records how a user obtained a resource.
type AccessType string

const (
	AccessTypeOwnCollege AccessType = "OWN_COLLEGE"
	AccessTypePaid       AccessType = "PAID"
)

// AccessTypeAdmin labels an admin opening another college's file. It is never stored in the ledger.
const AccessTypeAdmin AccessType = "ADMIN"

// Valid reports whether the access type may be stored in the ledger.
func (a AccessType) Valid() bool {
	return a == AccessTypeOwnCollege || a == AccessTypePaid
}

// ResourceAccess is an append-only unlock record, unique per (user, resource, access type).
type ResourceAccess struct {
	ID            string     `db:"id" json:"id"`
	UserID        string     `db:"user_id" json:"user_id"`
	ResourceID    string     `db:"resource_id" json:"resource_id"`
	AccessType    AccessType `db:"access_type" json:"access_type"`
	PaymentAmount *float64   `db:"payment_amount" json:"payment_amount"`
	UnlockedAt    time.Time  `db:"unlocked_at" json:"unlocked_at"`
}
