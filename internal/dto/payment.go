package dto

import (
	"time"

	"github.com/noah-isme/collegehub-api/internal/models"
)

// PaymentSessionView is returned from initiate.
type PaymentSessionView struct {
	SessionID  string               `json:"sessionId"`
	ResourceID string               `json:"resourceId"`
	Amount     float64              `json:"amount"`
	Currency   string               `json:"currency"`
	Status     models.PaymentStatus `json:"status"`
	CreatedAt  time.Time            `json:"createdAt"`
	ExpiresAt  time.Time            `json:"expiresAt"`
}

// NewPaymentSessionView projects a stored session.
func NewPaymentSessionView(s *models.PaymentSession) *PaymentSessionView {
	return &PaymentSessionView{
		SessionID:  s.SessionID,
		ResourceID: s.ResourceID,
		Amount:     s.Amount,
		Currency:   s.Currency,
		Status:     s.Status,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}

// PaymentResult is the non-throwing outcome of verify.
type PaymentResult struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Status  models.PaymentStatus `json:"status,omitempty"`
	Amount  *float64             `json:"amount,omitempty"`
}
