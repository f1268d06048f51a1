package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/models"
	"github.com/noah-isme/sma-exam-api/internal/service"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
	"github.com/noah-isme/sma-exam-api/pkg/response"
)

type examOrchestrator interface {
	CreateSession(ctx context.Context, req dto.CreateSessionRequest) (models.Session, error)
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	ListSessions(ctx context.Context, query dto.ListQuery) ([]models.Session, models.Pagination)
	DeleteSession(ctx context.Context, sessionID string) error
	AddSubject(ctx context.Context, sessionID string, req dto.AddSubjectRequest) (models.Subject, error)
	ListSubjects(ctx context.Context, sessionID string) ([]models.Subject, error)
	PublishAll(ctx context.Context, sessionID string) ([]models.Subject, error)
	EditSubjectSlot(ctx context.Context, subjectID string, req dto.EditSlotRequest) (models.Subject, error)
	RunSession(ctx context.Context, sessionID string) (models.Run, error)
	SimulateAllocation(ctx context.Context, sessionID string) error
	ListEligibility(ctx context.Context, sessionID string) ([]models.EligibilityRow, error)
	ListTickets(ctx context.Context, sessionID string) ([]models.HallTicket, error)
	ListRoomRequests(ctx context.Context, sessionID string) ([]models.RoomRequest, error)
	LastRun(ctx context.Context, sessionID string) (models.Run, error)
}

// ExamHandler exposes the exam session pipeline endpoints.
type ExamHandler struct {
	service examOrchestrator
}

// NewExamHandler constructs the handler.
func NewExamHandler(svc *service.ExamService) *ExamHandler {
	return &ExamHandler{service: svc}
}

// CreateSession godoc
// @Summary Create an exam session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSessionRequest true "Create session payload"
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *ExamHandler) CreateSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	session, err := h.service.CreateSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// ListSessions godoc
// @Summary List exam sessions newest first
// @Tags Sessions
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *ExamHandler) ListSessions(c *gin.Context) {
	var query dto.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid list query"))
		return
	}
	sessions, pagination := h.service.ListSessions(c.Request.Context(), query)
	response.JSON(c, http.StatusOK, sessions, &pagination)
}

// GetSession godoc
// @Summary Get one exam session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *ExamHandler) GetSession(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// DeleteSession godoc
// @Summary Delete a session and all derived records
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *ExamHandler) DeleteSession(c *gin.Context) {
	if err := h.service.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddSubject godoc
// @Summary Add an exam paper to a session
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.AddSubjectRequest true "Add subject payload"
// @Success 201 {object} response.Envelope
// @Router /sessions/{id}/subjects [post]
func (h *ExamHandler) AddSubject(c *gin.Context) {
	var req dto.AddSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subject payload"))
		return
	}
	subject, err := h.service.AddSubject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// ListSubjects godoc
// @Summary List a session's subjects
// @Tags Subjects
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/subjects [get]
func (h *ExamHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.service.ListSubjects(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// PublishAll godoc
// @Summary Publish every subject in a session
// @Tags Subjects
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/publish [post]
func (h *ExamHandler) PublishAll(c *gin.Context) {
	subjects, err := h.service.PublishAll(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// EditSlot godoc
// @Summary Postpone a subject to a new date/time window
// @Description Resets the subject's ticket items and room request to PENDING; the session drops back to SCHEDULED.
// @Tags Subjects
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body dto.EditSlotRequest true "New slot payload"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/slot [patch]
func (h *ExamHandler) EditSlot(c *gin.Context) {
	var req dto.EditSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}
	subject, err := h.service.EditSubjectSlot(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// RunSession godoc
// @Summary Run the exam pipeline for a session
// @Description Schedules subjects clash-free, evaluates eligibility, issues hall tickets, emits room requests and arms the deferred allocation pass.
// @Tags Runs
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/run [post]
func (h *ExamHandler) RunSession(c *gin.Context) {
	run, err := h.service.RunSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// Allocate godoc
// @Summary Re-arm the deferred room allocation pass
// @Tags Runs
// @Produce json
// @Param id path string true "Session ID"
// @Success 202 {object} response.Envelope
// @Router /sessions/{id}/allocate [post]
func (h *ExamHandler) Allocate(c *gin.Context) {
	if err := h.service.SimulateAllocation(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"status": "allocation scheduled"}, nil)
}

// Eligibility godoc
// @Summary List the session's eligibility rows
// @Tags Eligibility
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/eligibility [get]
func (h *ExamHandler) Eligibility(c *gin.Context) {
	rows, err := h.service.ListEligibility(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Tickets godoc
// @Summary List the session's hall tickets
// @Tags Tickets
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/tickets [get]
func (h *ExamHandler) Tickets(c *gin.Context) {
	tickets, err := h.service.ListTickets(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tickets, nil)
}

// RoomRequests godoc
// @Summary List the session's room requests in emission order
// @Tags Rooms
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/room-requests [get]
func (h *ExamHandler) RoomRequests(c *gin.Context) {
	requests, err := h.service.ListRoomRequests(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// LastRun godoc
// @Summary Get the session's latest run record
// @Tags Runs
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/runs [get]
func (h *ExamHandler) LastRun(c *gin.Context) {
	run, err := h.service.LastRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}
