package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/collegehub-api/internal/dto"
	"github.com/noah-isme/collegehub-api/internal/models"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
	"github.com/noah-isme/collegehub-api/pkg/response"
)

type userService interface {
	Get(ctx context.Context, id string) (*models.UserInfo, error)
	AssignModerator(ctx context.Context, actorID, userID, collegeID string, meta models.RequestMeta) (*models.UserInfo, error)
	RevokeModerator(ctx context.Context, actorID, userID string, meta models.RequestMeta) (*models.UserInfo, error)
}

// UserHandler exposes profile and role management endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// Me godoc
// @Summary Current user
// @Description Returns the caller's current role and college
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me [get]
func (h *UserHandler) Me(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	user, err := h.service.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// AssignModerator godoc
// @Summary Assign moderator
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.AssignModeratorRequest true "College to moderate"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Failure 400 {object} response.Envelope
// @Router /users/{id}/moderator [put]
func (h *UserHandler) AssignModerator(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.AssignModeratorRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CollegeID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "collegeId is required"))
		return
	}
	collegeID, err := uuid.Parse(req.CollegeID)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid id format"))
		return
	}

	user, err := h.service.AssignModerator(c.Request.Context(), claims.UserID, id, collegeID.String(), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// RevokeModerator godoc
// @Summary Revoke moderator
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{id}/moderator [delete]
func (h *UserHandler) RevokeModerator(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	user, err := h.service.RevokeModerator(c.Request.Context(), claims.UserID, id, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}
