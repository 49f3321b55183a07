package dto

import (
	"time"

	"github.com/noah-isme/collegehub-api/internal/models"
)

// AccessResult is the evaluator verdict for one (user, resource) pair.
type AccessResult struct {
	CanAccess       bool `json:"canAccess"`
	RequiresPayment bool `json:"requiresPayment"`
	IsUnlocked      bool `json:"isUnlocked"`
}

// AccessHistoryItem is one row of a user's access history.
type AccessHistoryItem struct {
	ResourceID    string            `json:"resourceId"`
	AccessType    models.AccessType `json:"accessType"`
	PaymentAmount *float64          `json:"paymentAmount"`
	UnlockedAt    time.Time         `json:"unlockedAt"`
}
