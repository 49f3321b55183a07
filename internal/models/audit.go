package models

import "time"

const (
	AuditActionRegister        = "REGISTER"
	AuditActionLogin           = "LOGIN"
	AuditActionResourceUpload  = "RESOURCE_UPLOAD"
	AuditActionResourceDelete  = "RESOURCE_DELETE"
	AuditActionModeratorAssign = "MODERATOR_ASSIGN"
	AuditActionModeratorRevoke = "MODERATOR_REVOKE"
	AuditActionCollegeApprove  = "COLLEGE_APPROVE"
	AuditActionCollegeRemove   = "COLLEGE_REMOVE"
	AuditActionPaymentInitiate = "PAYMENT_INITIATE"
	AuditActionPaymentVerify   = "PAYMENT_VERIFY"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID        string    `db:"id" json:"id"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	Action    string    `db:"action" json:"action"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  *string   `db:"entity_id" json:"entity_id,omitempty"`
	OldValues []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
