package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/models"
	"github.com/noah-isme/sma-exam-api/internal/service"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
	"github.com/noah-isme/sma-exam-api/pkg/response"
)

type archiver interface {
	Request(ctx context.Context, sessionID, collection, format string) (models.ArchiveEntry, error)
	Get(ctx context.Context, id string) (models.ArchiveEntry, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.ArchiveEntry, error)
	Download(ctx context.Context, token string) (service.ArchiveDownload, error)
}

// ArchiveHandler manages queued export snapshots and their downloads.
type ArchiveHandler struct {
	service archiver
}

// NewArchiveHandler constructs the handler.
func NewArchiveHandler(svc *service.ArchiveService) *ArchiveHandler {
	return &ArchiveHandler{service: svc}
}

// Create godoc
// @Summary Queue an export snapshot
// @Description Accepts the render request and returns the queued entry; poll the entry until it is READY.
// @Tags Archives
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body dto.ArchiveRequest false "Collection and format"
// @Success 202 {object} models.ArchiveEntry
// @Router /sessions/{id}/archives [post]
func (h *ArchiveHandler) Create(c *gin.Context) {
	var req dto.ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid archive request"))
		return
	}
	entry, err := h.service.Request(c.Request.Context(), c.Param("id"), req.Collection, req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, entry, nil)
}

// List godoc
// @Summary List a session's export snapshots
// @Tags Archives
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {array} models.ArchiveEntry
// @Router /sessions/{id}/archives [get]
func (h *ArchiveHandler) List(c *gin.Context) {
	entries, err := h.service.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Get godoc
// @Summary Fetch one export snapshot
// @Tags Archives
// @Produce json
// @Param archiveId path string true "Archive ID"
// @Success 200 {object} models.ArchiveEntry
// @Router /archives/{archiveId} [get]
func (h *ArchiveHandler) Get(c *gin.Context) {
	entry, err := h.service.Get(c.Request.Context(), c.Param("archiveId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Download godoc
// @Summary Download a rendered snapshot
// @Description Streams the file referenced by a signed token issued when the snapshot became READY.
// @Tags Archives
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /archives/download [get]
func (h *ArchiveHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	dl, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer dl.File.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	c.DataFromReader(http.StatusOK, dl.SizeBytes, dl.ContentType, dl.File, nil)
}
