package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/collegehub-api/internal/dto"
	"github.com/noah-isme/collegehub-api/internal/models"
	"github.com/noah-isme/collegehub-api/pkg/response"
)

type paymentService interface {
	Initiate(ctx context.Context, userID, resourceID string) (*models.PaymentSession, error)
	VerifyForUser(ctx context.Context, userID, sessionID string) dto.PaymentResult
	Session(ctx context.Context, userID, sessionID string) (*models.PaymentSession, error)
}

// PaymentHandler drives the cross-college unlock flow.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler creates a new handler.
func NewPaymentHandler(svc paymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// Initiate godoc
// @Summary Start a payment session
// @Description Opens (or reuses) a pending session to unlock a resource from another college
// @Tags Payments
// @Produce json
// @Param id path string true "Resource ID"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Security BearerAuth
// @Failure 400 {object} response.Envelope
// @Router /resources/{id}/payments [post]
func (h *PaymentHandler) Initiate(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	session, err := h.service.Initiate(c.Request.Context(), claims.UserID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewPaymentSessionView(session))
}

// Verify godoc
// @Summary Verify a payment session
// @Description Always answers 200; the outcome is carried in success and message
// @Tags Payments
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/{sessionId}/verify [post]
func (h *PaymentHandler) Verify(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	response.JSON(c, http.StatusOK, h.service.VerifyForUser(c.Request.Context(), claims.UserID, c.Param("sessionId")))
}

// Get godoc
// @Summary Get a payment session
// @Tags Payments
// @Produce json
// @Param sessionId path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /payments/{sessionId} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	session, err := h.service.Session(c.Request.Context(), claims.UserID, c.Param("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewPaymentSessionView(session))
}
