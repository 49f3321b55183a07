package models

import "time"

// UserRole is a flat category; each operation decides explicitly which roles it admits.
type UserRole string

const (
	RoleGuest       UserRole = "GUEST"
	RoleGeneralUser UserRole = "GENERAL_USER"
	RoleCollegeUser UserRole = "COLLEGE_USER"
	RoleModerator   UserRole = "MODERATOR"
	RoleAdmin       UserRole = "ADMIN"
)

// Valid reports whether the role is one of the known categories.
func (r UserRole) Valid() bool {
	switch r {
	case RoleGuest, RoleGeneralUser, RoleCollegeUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// HasResourceAccess is false for roles that are denied the resource library outright.
func (r UserRole) HasResourceAccess() bool {
	return r != RoleGuest && r != RoleGeneralUser && r.Valid()
}

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         UserRole  `db:"role" json:"role"`
	CollegeID    *string   `db:"college_id" json:"college_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// BelongsTo reports whether the user is affiliated with collegeID.
func (u *User) BelongsTo(collegeID string) bool {
	return u != nil && u.CollegeID != nil && *u.CollegeID == collegeID
}

// Identity is the resolved role and affiliation of a user.
type Identity struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	CollegeID *string  `json:"college_id,omitempty"`
}
