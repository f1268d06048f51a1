package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/service"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
	"github.com/noah-isme/sma-exam-api/pkg/response"
)

type exporter interface {
	Export(ctx context.Context, sessionID, collection, format string) (service.ExportResult, error)
}

// ExportHandler streams rendered session collections as downloads.
type ExportHandler struct {
	service exporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Export godoc
// @Summary Download a session collection
// @Description Renders subjects, eligibility, tickets, room-requests, run or the full bundle as json, csv or pdf.
// @Tags Export
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Session ID"
// @Param collection query string false "Collection (subjects|eligibility|tickets|room-requests|run|bundle)"
// @Param format query string false "Format (json|csv|pdf)"
// @Success 200 {file} binary
// @Router /sessions/{id}/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	result, err := h.service.Export(c.Request.Context(), c.Param("id"), query.Collection, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Body)
}
