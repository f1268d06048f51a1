package service

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-api/internal/models"
	"github.com/noah-isme/sma-exam-api/internal/repository"
)

// AllocationConfig tunes the room request emitter and the deferred
// allocation simulator.
type AllocationConfig struct {
	RoomPool    []string
	Delay       time.Duration
	CapacityMin int
	CapacityMax int
}

// AllocationObserver receives allocation outcomes, e.g. for metrics.
type AllocationObserver interface {
	AllocationResolved(allocated, failed int)
}

// AllocationService emits one room request per scheduled subject and, after a
// configurable delay, resolves pending requests against a fixed room pool.
// Re-triggering a session cancels its outstanding timer, so rapid reruns
// collapse into a single allocation pass over the live state.
type AllocationService struct {
	store    *repository.ExamStore
	cfg      AllocationConfig
	observer AllocationObserver
	logger   *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool

	// passMu serializes allocation passes so two timers firing close
	// together never interleave their read-modify-write cycles.
	passMu sync.Mutex
}

// NewAllocationService wires the emitter and simulator.
func NewAllocationService(store *repository.ExamStore, cfg AllocationConfig, observer AllocationObserver, logger *zap.Logger) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{
		store:    store,
		cfg:      cfg,
		observer: observer,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}
}

// BuildRequests emits one PENDING room request per scheduled subject.
// Capacity is 90% of the eligible head count clamped to the configured
// bounds, then staggered by position so rooms of different sizes get
// exercised.
func (s *AllocationService) BuildRequests(session models.Session, scheduled []models.Subject, eligibleCount int, now time.Time) []models.RoomRequest {
	capBase := int(math.Ceil(float64(eligibleCount) * 0.9))
	if capBase < s.cfg.CapacityMin {
		capBase = s.cfg.CapacityMin
	}
	if capBase > s.cfg.CapacityMax {
		capBase = s.cfg.CapacityMax
	}

	requests := make([]models.RoomRequest, 0, len(scheduled))
	for idx, subject := range scheduled {
		requests = append(requests, models.RoomRequest{
			ID:               uuid.NewString(),
			RequestedAt:      now,
			RequesterRole:    models.RequesterRoleSystem,
			RequesterID:      "exam",
			Purpose:          models.RoomPurposeExam,
			SessionID:        session.ID,
			SubjectID:        subject.ID,
			Title:            fmt.Sprintf("%s - %s", subject.CourseCode, subject.CourseName),
			StartAt:          combineDateTime(subject.ExamDate, subject.StartTime),
			EndAt:            combineDateTime(subject.ExamDate, subject.EndTime),
			CapacityRequired: capBase + (idx%3)*10,
			NeedsProjector:   false,
			NeedsAC:          true,
			Status:           models.RoomRequestStatusPending,
		})
	}
	return requests
}

// Trigger schedules an allocation pass for the session after the configured
// delay, cancelling any pass already pending for it. Safe to call from
// concurrent requests.
func (s *AllocationService) Trigger(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if timer, ok := s.timers[sessionID]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.cfg.Delay, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		// a re-Trigger may have armed a replacement; only unregister ourselves
		if s.timers[sessionID] == timer {
			delete(s.timers, sessionID)
		}
		s.mu.Unlock()
		s.RunPass(sessionID)
	})
	s.timers[sessionID] = timer
}

// Cancel drops any pending allocation pass for the session. Used on session
// delete so a stale timer cannot resurrect data for a removed session.
func (s *AllocationService) Cancel(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[sessionID]; ok {
		timer.Stop()
		delete(s.timers, sessionID)
	}
}

// Close cancels every pending timer and rejects future triggers. Timers that
// already fired finish their pass.
func (s *AllocationService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// RunPass resolves the session's pending room requests and propagates
// allocated rooms into hall ticket items. It reads the live state at call
// time, so slot edits made during the delay are honored.
func (s *AllocationService) RunPass(sessionID string) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	allocated := 0
	failed := 0
	bySubject := make(map[string]models.RoomRequest)

	s.store.UpdateRoomRequests(sessionID, func(requests []models.RoomRequest) []models.RoomRequest {
		for idx := range requests {
			request := &requests[idx]
			if request.Status != models.RoomRequestStatusPending && request.Status != models.RoomRequestStatusNew {
				if request.Status == models.RoomRequestStatusAllocated && request.AllocatedRoomCode != "" {
					if _, seen := bySubject[request.SubjectID]; !seen && request.SubjectID != "" {
						bySubject[request.SubjectID] = *request
					}
				}
				continue
			}
			if idx%13 == 9 {
				request.Status = models.RoomRequestStatusFailed
				request.AllocatedRoomCode = ""
				request.AllocatedSeatPlan = ""
				failed++
				continue
			}
			request.Status = models.RoomRequestStatusAllocated
			request.AllocatedRoomCode = s.cfg.RoomPool[idx%len(s.cfg.RoomPool)]
			request.AllocatedSeatPlan = models.SeatPlanAuto
			allocated++
			if _, seen := bySubject[request.SubjectID]; !seen && request.SubjectID != "" {
				bySubject[request.SubjectID] = *request
			}
		}
		return requests
	})

	// Ticket items reference subjects by (courseCode, examDate, startTime),
	// resolved against the live subject list so postponed slots miss on
	// purpose and stay PENDING.
	courseToSubject := make(map[string]string)
	for _, subject := range s.store.ListSubjects(sessionID) {
		courseToSubject[subjectLookupKey(subject.CourseCode, subject.ExamDate, subject.StartTime)] = subject.ID
	}

	s.store.UpdateTickets(sessionID, func(tickets []models.HallTicket) []models.HallTicket {
		for t := range tickets {
			ticket := &tickets[t]
			for i := range ticket.Items {
				item := &ticket.Items[i]
				if item.Room != models.Pending && item.Seat != models.Pending {
					continue
				}
				subjectID, ok := courseToSubject[subjectLookupKey(item.CourseCode, item.ExamDate, item.StartTime)]
				if !ok {
					continue
				}
				request, ok := bySubject[subjectID]
				if !ok || request.AllocatedRoomCode == "" {
					continue
				}
				item.Room = request.AllocatedRoomCode
				item.Seat = makeSeat(ticket.RegNo, i)
			}
		}
		return tickets
	})

	if s.observer != nil {
		s.observer.AllocationResolved(allocated, failed)
	}
	s.logger.Info("room allocation pass completed",
		zap.String("session_id", sessionID),
		zap.Int("allocated", allocated),
		zap.Int("failed", failed),
	)
}

func subjectLookupKey(courseCode, examDate, startTime string) string {
	return courseCode + "::" + examDate + "::" + startTime
}

// makeSeat derives a stable seat label from the registration number's last
// two digits and the item's position on the ticket. Seat 0 maps to 1 so the
// label never reads S-00.
func makeSeat(regNo string, itemIdx int) string {
	n := 0
	if len(regNo) >= 2 {
		if parsed, err := strconv.Atoi(regNo[len(regNo)-2:]); err == nil {
			n = parsed
		}
	}
	seat := (n + itemIdx*7) % 60
	if seat == 0 {
		seat = 1
	}
	return fmt.Sprintf("S-%02d", seat)
}
