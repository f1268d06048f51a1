package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

const (
	clashSuggestionLimit  = 6
	noSlotSuggestionLimit = 8
)

// ScheduleResult carries the outcome of one clash-free scheduling pass.
type ScheduleResult struct {
	Subjects       []models.Subject
	Conflicts      []models.Conflict
	ScheduledCount int
}

// SchedulerService assigns each published subject a conflict-free slot inside
// its session window, grouped by (batch, semester). First-fit, deterministic
// in subject iteration order; callers needing priority ordering must pre-sort
// the input.
type SchedulerService struct {
	template SlotTemplate
	logger   *zap.Logger
}

// NewSchedulerService wires the scheduler.
func NewSchedulerService(template SlotTemplate, logger *zap.Logger) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulerService{template: template, logger: logger}
}

// Schedule runs the reservation pass followed by the first-fit assignment
// pass over the session's subject list. Subjects are returned updated;
// conflicts are data for manual resolution, never errors. A run with
// conflicts still commits whatever was scheduled.
func (s *SchedulerService) Schedule(session models.Session, subjects []models.Subject) ScheduleResult {
	updated := append([]models.Subject(nil), subjects...)
	conflicts := make([]models.Conflict, 0)

	pool := s.slotPool(session)

	// ownedBy maps a reservation key to the subject that claimed it. The
	// first subject in iteration order wins a contested key; later claimants
	// record a clash and are rescheduled by the assignment pass. This
	// tie-break is iteration-order-dependent on purpose.
	ownedBy := make(map[string]string)

	// Reservation pass: claim keys for subjects already holding a valid slot
	// inside the window. Idempotent for uniquely slotted subjects.
	for _, subject := range updated {
		if subject.SessionID != session.ID || subject.Status != models.SubjectStatusPublished {
			continue
		}
		if !subjectHasValidSlot(subject) || !dateInRange(subject.ExamDate, session.StartDate, session.EndDate) {
			continue
		}

		group := groupKey(subject)
		key := reservationKey(session.ID, group, models.Slot{ExamDate: subject.ExamDate, StartTime: subject.StartTime, EndTime: subject.EndTime})
		if _, taken := ownedBy[key]; taken {
			conflicts = append(conflicts, models.Conflict{
				SubjectID:   subject.ID,
				CourseCode:  subject.CourseCode,
				Issue:       fmt.Sprintf("Clash detected for %s at %s %s-%s", group, subject.ExamDate, subject.StartTime, subject.EndTime),
				Suggestions: firstN(pool, clashSuggestionLimit),
			})
			continue
		}
		ownedBy[key] = subject.ID
	}

	// Assignment pass: first-fit over the pool for every subject not already
	// validly and uniquely reserved. Accepted assignments reserve their key
	// immediately, so they are visible to later iterations.
	for i := range updated {
		subject := &updated[i]
		if subject.SessionID != session.ID || subject.Status != models.SubjectStatusPublished {
			continue
		}

		group := groupKey(*subject)
		if subjectHasValidSlot(*subject) && dateInRange(subject.ExamDate, session.StartDate, session.EndDate) {
			key := reservationKey(session.ID, group, models.Slot{ExamDate: subject.ExamDate, StartTime: subject.StartTime, EndTime: subject.EndTime})
			if ownedBy[key] == subject.ID {
				continue
			}
		}

		rejected := make([]models.Slot, 0, len(pool))
		chosen := false
		for _, slot := range pool {
			key := reservationKey(session.ID, group, slot)
			if _, taken := ownedBy[key]; taken {
				rejected = append(rejected, slot)
				continue
			}
			if s.groupOverlapsOnDate(updated, session.ID, group, slot) {
				rejected = append(rejected, slot)
				continue
			}

			subject.ExamDate = slot.ExamDate
			subject.StartTime = slot.StartTime
			subject.EndTime = slot.EndTime
			ownedBy[key] = subject.ID
			chosen = true
			break
		}

		if !chosen {
			conflicts = append(conflicts, models.Conflict{
				SubjectID:   subject.ID,
				CourseCode:  subject.CourseCode,
				Issue:       fmt.Sprintf("No slot available for %s within %s -> %s", group, session.StartDate, session.EndDate),
				Suggestions: firstN(rejected, noSlotSuggestionLimit),
			})
		}
	}

	scheduled := 0
	for _, subject := range updated {
		if subject.SessionID == session.ID && subject.Status == models.SubjectStatusPublished && subjectHasValidSlot(subject) {
			scheduled++
		}
	}

	if len(conflicts) > 0 {
		s.logger.Warn("scheduling finished with conflicts",
			zap.String("session_id", session.ID),
			zap.Int("conflicts", len(conflicts)),
			zap.Int("scheduled", scheduled),
		)
	}

	return ScheduleResult{Subjects: updated, Conflicts: conflicts, ScheduledCount: scheduled}
}

// slotPool builds every (date, window) candidate across the session range in
// chronological order: date ascending, then window ascending.
func (s *SchedulerService) slotPool(session models.Session) []models.Slot {
	dates := enumerateDates(session.StartDate, session.EndDate)
	pool := make([]models.Slot, 0, len(dates)*2)
	for _, date := range dates {
		pool = append(pool, s.template.slotsForDate(date)...)
	}
	return pool
}

// groupOverlapsOnDate reports whether any published, validly slotted subject
// of the same group already occupies time overlapping the candidate slot's
// window on the candidate date.
func (s *SchedulerService) groupOverlapsOnDate(subjects []models.Subject, sessionID, group string, slot models.Slot) bool {
	for _, other := range subjects {
		if other.SessionID != sessionID || other.Status != models.SubjectStatusPublished {
			continue
		}
		if groupKey(other) != group || other.ExamDate != slot.ExamDate || !subjectHasValidSlot(other) {
			continue
		}
		if overlaps(other.StartTime, other.EndTime, slot.StartTime, slot.EndTime) {
			return true
		}
	}
	return false
}

func firstN(slots []models.Slot, n int) []models.Slot {
	if len(slots) < n {
		n = len(slots)
	}
	return append([]models.Slot(nil), slots[:n]...)
}
