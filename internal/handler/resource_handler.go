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

type hierarchyService interface {
	Build(ctx context.Context, collegeID, userID string) (*dto.HierarchyTree, error)
}

type accessChecker interface {
	CanAccessResource(ctx context.Context, userID, resourceID string) dto.AccessResult
}

type resourceService interface {
	GetResourceFile(ctx context.Context, fileID, userID string) (*dto.FileView, error)
	Upload(ctx context.Context, uploaderID, collegeID string, req dto.UploadResourceRequest, meta models.RequestMeta) (*models.Resource, error)
	Delete(ctx context.Context, resourceID, userID string, meta models.RequestMeta) error
	ResolveDownload(ctx context.Context, token, userID string) (string, error)
}

// ResourceHandler serves the resource library: browsing, access checks, downloads and uploads.
type ResourceHandler struct {
	hierarchy hierarchyService
	access    accessChecker
	resources resourceService
}

// NewResourceHandler creates a new handler.
func NewResourceHandler(hierarchy hierarchyService, access accessChecker, resources resourceService) *ResourceHandler {
	return &ResourceHandler{hierarchy: hierarchy, access: access, resources: resources}
}

// Hierarchy godoc
// @Summary Browse a college library
// @Description Returns College → ResourceType → Department → Batch → File with per-file lock flags
// @Tags Resources
// @Produce json
// @Param id path string true "College ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Failure 400 {object} response.Envelope
// @Router /colleges/{id}/resources [get]
func (h *ResourceHandler) Hierarchy(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tree, err := h.hierarchy.Build(c.Request.Context(), id, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tree)
}

// CanAccess godoc
// @Summary Check access to a resource
// @Description Never fails; unknown users or resources yield an all-false verdict
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /resources/{id}/access [get]
func (h *ResourceHandler) CanAccess(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	response.JSON(c, http.StatusOK, h.access.CanAccessResource(c.Request.Context(), claims.UserID, c.Param("id")))
}

// GetFile godoc
// @Summary Open a resource file
// @Description Returns the resource metadata and a short-lived download token, recording the access
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Failure 400 {object} response.Envelope
// @Router /resources/{id} [get]
func (h *ResourceHandler) GetFile(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	file, err := h.resources.GetResourceFile(c.Request.Context(), id, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file)
}

// Upload godoc
// @Summary Upload a resource
// @Description Moderators upload to their own college; admins to any college
// @Tags Resources
// @Accept json
// @Produce json
// @Param id path string true "College ID"
// @Param payload body dto.UploadResourceRequest true "Resource metadata"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /colleges/{id}/resources [post]
func (h *ResourceHandler) Upload(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UploadResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resource payload"))
		return
	}

	resource, err := h.resources.Upload(c.Request.Context(), claims.UserID, id, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resource)
}

// Delete godoc
// @Summary Delete a resource
// @Tags Resources
// @Param id path string true "Resource ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Failure 400 {object} response.Envelope
// @Router /resources/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.resources.Delete(c.Request.Context(), id, claims.UserID, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Redeem a download token
// @Description Redirects to the file when the token is valid for the caller and access still holds
// @Tags Resources
// @Param token query string true "Download token"
// @Success 302
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /downloads [get]
func (h *ResourceHandler) Download(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	url, err := h.resources.ResolveDownload(c.Request.Context(), token, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, url)
}
