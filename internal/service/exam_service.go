package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/models"
	"github.com/noah-isme/sma-exam-api/internal/repository"
	"github.com/noah-isme/sma-exam-api/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ExamServiceConfig tunes orchestrator behavior.
type ExamServiceConfig struct {
	RunCacheTTL time.Duration
}

// ExamService orchestrates the exam pipeline: session/subject CRUD, the
// schedule -> eligibility -> tickets -> room requests run, and the deferred
// allocation trigger. Mutating operations are serialized under one mutex so
// a run never interleaves with a slot edit or delete.
type ExamService struct {
	store       *repository.ExamStore
	cache       *repository.CacheRepository
	scheduler   *SchedulerService
	eligibility *EligibilityService
	tickets     *TicketService
	allocation  *AllocationService
	metrics     *MetricsService
	validate    *validator.Validate
	cfg         ExamServiceConfig
	logger      *zap.Logger

	mu sync.Mutex
}

// NewExamService wires the orchestrator.
func NewExamService(
	store *repository.ExamStore,
	cache *repository.CacheRepository,
	scheduler *SchedulerService,
	eligibility *EligibilityService,
	tickets *TicketService,
	allocation *AllocationService,
	metrics *MetricsService,
	cfg ExamServiceConfig,
	logger *zap.Logger,
) *ExamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{
		store:       store,
		cache:       cache,
		scheduler:   scheduler,
		eligibility: eligibility,
		tickets:     tickets,
		allocation:  allocation,
		metrics:     metrics,
		validate:    validator.New(),
		cfg:         cfg,
		logger:      logger,
	}
}

// Close cancels deferred allocation work. Call on shutdown.
func (s *ExamService) Close() {
	s.allocation.Close()
}

// CreateSession opens a new DRAFT session with an inclusive date window.
func (s *ExamService) CreateSession(ctx context.Context, req dto.CreateSessionRequest) (models.Session, error) {
	// trim first so a whitespace-only title fails required
	req.Title = strings.TrimSpace(req.Title)
	req.Term = strings.TrimSpace(req.Term)
	if err := s.validate.Struct(req); err != nil {
		return models.Session{}, errors.Wrap(err, errors.ErrValidation.Code, errors.ErrValidation.Status, "invalid session payload")
	}
	if req.EndDate < req.StartDate {
		return models.Session{}, errors.Clone(errors.ErrValidation, "endDate must be on or after startDate")
	}

	session := models.Session{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Term:      req.Term,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    models.SessionStatusDraft,
		CreatedAt: time.Now().UTC(),
	}
	s.store.CreateSession(session)
	s.logger.Info("session created", zap.String("session_id", session.ID), zap.String("title", session.Title))
	return session, nil
}

// GetSession returns one session by id.
func (s *ExamService) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	session, ok := s.store.FindSession(sessionID)
	if !ok {
		return models.Session{}, errors.Clone(errors.ErrNotFound, "session not found")
	}
	return session, nil
}

// ListSessions returns sessions newest first with pagination metadata.
func (s *ExamService) ListSessions(ctx context.Context, query dto.ListQuery) ([]models.Session, models.Pagination) {
	sessions := s.store.ListSessions()
	page, size := normalizePage(query)
	pagination := models.Pagination{Page: page, PageSize: size, TotalCount: len(sessions)}

	start := (page - 1) * size
	if start >= len(sessions) {
		return []models.Session{}, pagination
	}
	end := start + size
	if end > len(sessions) {
		end = len(sessions)
	}
	return sessions[start:end], pagination
}

// DeleteSession removes a session and every derived record, cancelling any
// allocation pass still pending for it.
func (s *ExamService) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allocation.Cancel(sessionID)
	if !s.store.DeleteSession(sessionID) {
		return errors.Clone(errors.ErrNotFound, "session not found")
	}
	s.invalidateRunCache(ctx, sessionID)
	s.logger.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

// AddSubject registers an exam paper in a session. A provided slot must fall
// inside the session window; omitted slot fields are left for the scheduler
// to fill on the next run.
func (s *ExamService) AddSubject(ctx context.Context, sessionID string, req dto.AddSubjectRequest) (models.Subject, error) {
	session, ok := s.store.FindSession(sessionID)
	if !ok {
		return models.Subject{}, errors.Clone(errors.ErrNotFound, "session not found")
	}
	if err := s.validate.Struct(req); err != nil {
		return models.Subject{}, errors.Wrap(err, errors.ErrValidation.Code, errors.ErrValidation.Status, "invalid subject payload")
	}

	startTime, endTime := req.StartTime, req.EndTime
	if req.ExamDate != "" {
		if !dateInRange(req.ExamDate, session.StartDate, session.EndDate) {
			return models.Subject{}, errors.Clone(errors.ErrValidation, "exam date must be within session start/end")
		}
		if startTime == "" {
			startTime = "09:30"
		}
		if endTime == "" {
			endTime = "12:30"
		}
	}
	if startTime != "" && endTime != "" && minutesOfDay(endTime) <= minutesOfDay(startTime) {
		return models.Subject{}, errors.Clone(errors.ErrValidation, "end time must be after start time")
	}

	subject := models.Subject{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		CourseCode: strings.ToUpper(strings.TrimSpace(req.CourseCode)),
		CourseName: strings.TrimSpace(req.CourseName),
		ExamDate:   req.ExamDate,
		StartTime:  startTime,
		EndTime:    endTime,
		Batch:      strings.TrimSpace(req.Batch),
		Semester:   strings.TrimSpace(req.Semester),
		Status:     models.SubjectStatusPublished,
	}
	s.store.CreateSubject(subject)
	return subject, nil
}

// ListSubjects returns the session's subjects in insertion order.
func (s *ExamService) ListSubjects(ctx context.Context, sessionID string) ([]models.Subject, error) {
	if _, ok := s.store.FindSession(sessionID); !ok {
		return nil, errors.Clone(errors.ErrNotFound, "session not found")
	}
	return s.store.ListSubjects(sessionID), nil
}

// PublishAll flips every subject in the session to PUBLISHED.
func (s *ExamService) PublishAll(ctx context.Context, sessionID string) ([]models.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store.FindSession(sessionID); !ok {
		return nil, errors.Clone(errors.ErrNotFound, "session not found")
	}
	subjects := s.store.ListSubjects(sessionID)
	for i := range subjects {
		subjects[i].Status = models.SubjectStatusPublished
	}
	s.store.SaveSubjects(subjects)
	return subjects, nil
}

// EditSubjectSlot postpones a subject to a new window. Matching hall ticket
// items move with it and lose their room/seat, the subject's room request
// returns to PENDING, and the session drops back to SCHEDULED. Re-allocation
// requires an explicit run or allocation trigger.
func (s *ExamService) EditSubjectSlot(ctx context.Context, subjectID string, req dto.EditSlotRequest) (models.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subject, ok := s.store.FindSubject(subjectID)
	if !ok {
		return models.Subject{}, errors.Clone(errors.ErrNotFound, "subject not found")
	}
	session, ok := s.store.FindSession(subject.SessionID)
	if !ok {
		return models.Subject{}, errors.Clone(errors.ErrNotFound, "session not found")
	}
	if err := s.validate.Struct(req); err != nil {
		return models.Subject{}, errors.Wrap(err, errors.ErrValidation.Code, errors.ErrValidation.Status, "invalid slot payload")
	}
	if !dateInRange(req.ExamDate, session.StartDate, session.EndDate) {
		return models.Subject{}, errors.Clone(errors.ErrValidation, "exam date must be within session start/end")
	}
	if minutesOfDay(req.EndTime) <= minutesOfDay(req.StartTime) {
		return models.Subject{}, errors.Clone(errors.ErrValidation, "end time must be after start time")
	}

	subject.ExamDate = req.ExamDate
	subject.StartTime = req.StartTime
	subject.EndTime = req.EndTime
	subject.Status = models.SubjectStatusPublished
	s.store.SaveSubjects([]models.Subject{subject})

	s.store.UpdateTickets(session.ID, func(tickets []models.HallTicket) []models.HallTicket {
		for t := range tickets {
			for i := range tickets[t].Items {
				item := &tickets[t].Items[i]
				if item.CourseCode != subject.CourseCode {
					continue
				}
				item.ExamDate = req.ExamDate
				item.StartTime = req.StartTime
				item.Room = models.Pending
				item.Seat = models.Pending
			}
		}
		return tickets
	})

	s.store.UpdateRoomRequests(session.ID, func(requests []models.RoomRequest) []models.RoomRequest {
		for i := range requests {
			request := &requests[i]
			if request.SubjectID != subject.ID {
				continue
			}
			request.StartAt = combineDateTime(req.ExamDate, req.StartTime)
			request.EndAt = combineDateTime(req.ExamDate, req.EndTime)
			request.Status = models.RoomRequestStatusPending
			request.AllocatedRoomCode = ""
			request.AllocatedSeatPlan = ""
		}
		return requests
	})

	s.store.UpdateSessionStatus(session.ID, models.SessionStatusScheduled)
	s.invalidateRunCache(ctx, session.ID)
	s.logger.Info("subject slot postponed",
		zap.String("subject_id", subject.ID),
		zap.String("session_id", session.ID),
		zap.String("exam_date", req.ExamDate),
	)
	return subject, nil
}

// RunSession executes the full pipeline: clash-free scheduling, eligibility,
// hall tickets, room requests, run record, then the deferred allocation
// trigger. Conflicts do not abort the run; they mark it FAILED and leave the
// session SCHEDULED for another attempt.
func (s *ExamService) RunSession(ctx context.Context, sessionID string) (models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.store.FindSession(sessionID)
	if !ok {
		return models.Run{}, errors.Clone(errors.ErrNotFound, "session not found")
	}

	subjects := s.store.ListSubjects(sessionID)
	totalPublished := 0
	for _, subject := range subjects {
		if subject.Status == models.SubjectStatusPublished {
			totalPublished++
		}
	}
	if totalPublished == 0 {
		return models.Run{}, errors.Clone(errors.ErrPreconditionFailed, "add and publish subjects before running")
	}

	s.store.UpdateSessionStatus(sessionID, models.SessionStatusRunning)
	now := time.Now().UTC()

	sched := s.scheduler.Schedule(session, subjects)
	s.store.SaveSubjects(sched.Subjects)

	scheduled := make([]models.Subject, 0, len(sched.Subjects))
	for _, subject := range sched.Subjects {
		if subject.SessionID == sessionID && subject.Status == models.SubjectStatusPublished && subjectHasValidSlot(subject) {
			scheduled = append(scheduled, subject)
		}
	}

	rows := s.eligibility.EvaluateSession(sessionID)
	eligibleCount := 0
	for _, row := range rows {
		if row.Eligible {
			eligibleCount++
		}
	}

	tickets := s.tickets.Issue(sessionID, rows, scheduled, now)
	requests := s.allocation.BuildRequests(session, scheduled, eligibleCount, now)

	s.store.ReplaceEligibility(sessionID, rows)
	s.store.ReplaceTickets(sessionID, tickets)
	s.store.ReplaceRoomRequests(sessionID, requests)

	runOk := len(sched.Conflicts) == 0 && len(scheduled) == totalPublished
	var message string
	if runOk {
		message = fmt.Sprintf(
			"Schedule committed. Eligibility computed for %d. Hall tickets issued for %d. Room requests created for %d.",
			len(rows), eligibleCount, len(scheduled),
		)
	} else {
		message = fmt.Sprintf(
			"Partial commit (%d/%d). Conflicts require attention. Eligibility and tickets generated for scheduled subjects.",
			len(scheduled), totalPublished,
		)
	}

	status := models.RunStatusSuccess
	sessionStatus := models.SessionStatusCompleted
	if !runOk {
		status = models.RunStatusFailed
		sessionStatus = models.SessionStatusScheduled
	}

	run := models.Run{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		RequestedAt: now,
		Status:      status,
		Message:     message,
		Meta: models.RunMeta{
			ScheduledSubjects:   len(scheduled),
			TotalSubjects:       totalPublished,
			EligibleCount:       eligibleCount,
			IneligibleCount:     len(rows) - eligibleCount,
			TicketsIssued:       len(tickets),
			RoomRequestsCreated: len(requests),
			Conflicts:           sched.Conflicts,
		},
	}
	s.store.SaveRun(run)
	s.store.UpdateSessionStatus(sessionID, sessionStatus)

	s.allocation.Trigger(sessionID)
	s.metrics.RecordRun(string(status), len(sched.Conflicts), len(tickets))
	s.cacheRun(ctx, run)

	s.logger.Info("session run finished",
		zap.String("session_id", sessionID),
		zap.String("status", string(status)),
		zap.Int("scheduled", len(scheduled)),
		zap.Int("conflicts", len(sched.Conflicts)),
		zap.Int("tickets", len(tickets)),
	)
	return run, nil
}

// SimulateAllocation re-arms the deferred allocation pass for the session,
// cancelling any pass already pending.
func (s *ExamService) SimulateAllocation(ctx context.Context, sessionID string) error {
	if _, ok := s.store.FindSession(sessionID); !ok {
		return errors.Clone(errors.ErrNotFound, "session not found")
	}
	s.allocation.Trigger(sessionID)
	return nil
}

// ListEligibility returns the session's latest eligibility rows.
func (s *ExamService) ListEligibility(ctx context.Context, sessionID string) ([]models.EligibilityRow, error) {
	if _, ok := s.store.FindSession(sessionID); !ok {
		return nil, errors.Clone(errors.ErrNotFound, "session not found")
	}
	return s.store.ListEligibility(sessionID), nil
}

// ListTickets returns the session's hall tickets.
func (s *ExamService) ListTickets(ctx context.Context, sessionID string) ([]models.HallTicket, error) {
	if _, ok := s.store.FindSession(sessionID); !ok {
		return nil, errors.Clone(errors.ErrNotFound, "session not found")
	}
	return s.store.ListTickets(sessionID), nil
}

// ListRoomRequests returns the session's room requests in emission order.
func (s *ExamService) ListRoomRequests(ctx context.Context, sessionID string) ([]models.RoomRequest, error) {
	if _, ok := s.store.FindSession(sessionID); !ok {
		return nil, errors.Clone(errors.ErrNotFound, "session not found")
	}
	return s.store.ListRoomRequests(sessionID), nil
}

// LastRun returns the most recent run record, served from cache when warm.
func (s *ExamService) LastRun(ctx context.Context, sessionID string) (models.Run, error) {
	if _, ok := s.store.FindSession(sessionID); !ok {
		return models.Run{}, errors.Clone(errors.ErrNotFound, "session not found")
	}

	var cached models.Run
	if err := s.cache.Get(ctx, runCacheKey(sessionID), &cached); err == nil {
		s.metrics.RecordCache(true)
		return cached, nil
	}
	s.metrics.RecordCache(false)

	run, ok := s.store.FindRun(sessionID)
	if !ok {
		return models.Run{}, errors.Clone(errors.ErrNotFound, "no run recorded for session")
	}
	s.cacheRun(ctx, run)
	return run, nil
}

func (s *ExamService) cacheRun(ctx context.Context, run models.Run) {
	if err := s.cache.Set(ctx, runCacheKey(run.SessionID), run, s.cfg.RunCacheTTL); err != nil {
		s.logger.Warn("run cache write failed", zap.String("session_id", run.SessionID), zap.Error(err))
	}
}

func (s *ExamService) invalidateRunCache(ctx context.Context, sessionID string) {
	if err := s.cache.DeleteByPattern(ctx, runCacheKey(sessionID)); err != nil {
		s.logger.Warn("run cache invalidation failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func runCacheKey(sessionID string) string {
	return "exam:run:" + sessionID
}

func normalizePage(query dto.ListQuery) (page, size int) {
	page = query.Page
	if page < 1 {
		page = 1
	}
	size = query.Limit
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
