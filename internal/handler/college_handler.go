package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/collegehub-api/internal/dto"
	"github.com/noah-isme/collegehub-api/internal/models"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
	"github.com/noah-isme/collegehub-api/pkg/response"
)

type collegeService interface {
	List(ctx context.Context) ([]models.College, error)
	Get(ctx context.Context, id string) (*models.College, error)
	Approve(ctx context.Context, actorID string, req dto.ApproveCollegeRequest, meta models.RequestMeta) (*models.College, error)
	Remove(ctx context.Context, actorID, collegeID string, meta models.RequestMeta) error
}

// CollegeHandler exposes the college directory.
type CollegeHandler struct {
	service collegeService
}

// NewCollegeHandler creates a new handler.
func NewCollegeHandler(svc collegeService) *CollegeHandler {
	return &CollegeHandler{service: svc}
}

// List godoc
// @Summary List colleges
// @Tags Colleges
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /colleges [get]
func (h *CollegeHandler) List(c *gin.Context) {
	colleges, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, colleges, map[string]interface{}{"total": len(colleges)})
}

// Get godoc
// @Summary Get college
// @Tags Colleges
// @Produce json
// @Param id path string true "College ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /colleges/{id} [get]
func (h *CollegeHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	college, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, college)
}

// Approve godoc
// @Summary Approve a college
// @Tags Colleges
// @Accept json
// @Produce json
// @Param payload body dto.ApproveCollegeRequest true "College payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /colleges [post]
func (h *CollegeHandler) Approve(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ApproveCollegeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid college payload"))
		return
	}

	college, err := h.service.Approve(c.Request.Context(), claims.UserID, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, college)
}

// Remove godoc
// @Summary Remove a college
// @Tags Colleges
// @Param id path string true "College ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Failure 400 {object} response.Envelope
// @Router /colleges/{id} [delete]
func (h *CollegeHandler) Remove(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), claims.UserID, id, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
