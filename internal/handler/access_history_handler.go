package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/collegehub-api/internal/dto"
	"github.com/noah-isme/collegehub-api/internal/models"
	appErrors "github.com/noah-isme/collegehub-api/pkg/errors"
	"github.com/noah-isme/collegehub-api/pkg/export"
	"github.com/noah-isme/collegehub-api/pkg/response"
)

type accessHistoryService interface {
	QueryByUser(ctx context.Context, userID string, accessType *models.AccessType) ([]dto.AccessHistoryItem, error)
	ExportHistory(ctx context.Context, userID string, accessType *models.AccessType, format export.Format) ([]byte, string, error)
}

// AccessHistoryHandler lists and exports the caller's unlock ledger.
type AccessHistoryHandler struct {
	service accessHistoryService
}

// NewAccessHistoryHandler creates a new handler.
func NewAccessHistoryHandler(svc accessHistoryService) *AccessHistoryHandler {
	return &AccessHistoryHandler{service: svc}
}

// List godoc
// @Summary List my resource accesses
// @Tags Access
// @Produce json
// @Param type query string false "OWN_COLLEGE or PAID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /me/accesses [get]
func (h *AccessHistoryHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	items, err := h.service.QueryByUser(c.Request.Context(), claims.UserID, accessTypeQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// Export godoc
// @Summary Export my resource accesses
// @Tags Access
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "csv or pdf"
// @Param type query string false "OWN_COLLEGE or PAID"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /me/accesses/export [get]
func (h *AccessHistoryHandler) Export(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	format, ok := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}

	data, filename, err := h.service.ExportHistory(c.Request.Context(), claims.UserID, accessTypeQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, format.ContentType(), data)
}

func accessTypeQuery(c *gin.Context) *models.AccessType {
	raw := c.Query("type")
	if raw == "" {
		return nil
	}
	accessType := models.AccessType(raw)
	return &accessType
}
