package models

import "time"

// College is an approved institution; EmailDomain is the affiliation join key.
type College struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	EmailDomain string    `db:"email_domain" json:"email_domain"`
	LogoURL     *string   `db:"logo_url" json:"logo_url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
