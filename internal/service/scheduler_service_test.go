package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

func schedulerFixtureSession() models.Session {
	return models.Session{
		ID:        "sess-1",
		Title:     "Midterm",
		StartDate: "2025-04-01",
		EndDate:   "2025-04-02",
		Status:    models.SessionStatusDraft,
	}
}

func unslottedSubject(id string) models.Subject {
	return models.Subject{
		ID:         id,
		SessionID:  "sess-1",
		CourseCode: "CS" + id,
		CourseName: "Course " + id,
		Batch:      "2023",
		Semester:   "4",
		Status:     models.SubjectStatusPublished,
	}
}

func TestScheduleFirstFitFillsPoolInOrder(t *testing.T) {
	svc := NewSchedulerService(DefaultSlotTemplate(), nil)
	subjects := []models.Subject{
		unslottedSubject("a"), unslottedSubject("b"),
		unslottedSubject("c"), unslottedSubject("d"),
	}

	result := svc.Schedule(schedulerFixtureSession(), subjects)
	require.Empty(t, result.Conflicts)
	assert.Equal(t, 4, result.ScheduledCount)

	assert.Equal(t, models.Slot{ExamDate: "2025-04-01", StartTime: "09:30", EndTime: "12:30"}, slotOf(result.Subjects[0]))
	assert.Equal(t, models.Slot{ExamDate: "2025-04-01", StartTime: "13:30", EndTime: "16:30"}, slotOf(result.Subjects[1]))
	assert.Equal(t, models.Slot{ExamDate: "2025-04-02", StartTime: "09:30", EndTime: "12:30"}, slotOf(result.Subjects[2]))
	assert.Equal(t, models.Slot{ExamDate: "2025-04-02", StartTime: "13:30", EndTime: "16:30"}, slotOf(result.Subjects[3]))
}

func TestScheduleExhaustedPoolReportsConflictWithSuggestions(t *testing.T) {
	svc := NewSchedulerService(DefaultSlotTemplate(), nil)
	subjects := []models.Subject{
		unslottedSubject("a"), unslottedSubject("b"), unslottedSubject("c"),
		unslottedSubject("d"), unslottedSubject("e"),
	}

	result := svc.Schedule(schedulerFixtureSession(), subjects)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, 4, result.ScheduledCount)
	assert.Equal(t, "e", result.Conflicts[0].SubjectID)
	assert.Contains(t, result.Conflicts[0].Issue, "No slot available")
	// every pool slot was rejected, all four land in the suggestions
	assert.Len(t, result.Conflicts[0].Suggestions, 4)
}

func TestScheduleNeverDoubleBooksAGroup(t *testing.T) {
	svc := NewSchedulerService(DefaultSlotTemplate(), nil)
	session := schedulerFixtureSession()
	session.EndDate = "2025-04-03"

	subjects := make([]models.Subject, 0, 6)
	for i := 0; i < 6; i++ {
		subjects = append(subjects, unslottedSubject(fmt.Sprintf("s%d", i)))
	}
	result := svc.Schedule(session, subjects)
	require.Empty(t, result.Conflicts)

	seen := map[string]bool{}
	for _, subject := range result.Subjects {
		key := reservationKey(session.ID, groupKey(subject), slotOf(subject))
		assert.False(t, seen[key], "slot %s assigned twice", key)
		seen[key] = true
	}
}

func TestScheduleIdempotentForValidAssignments(t *testing.T) {
	svc := NewSchedulerService(DefaultSlotTemplate(), nil)
	session := schedulerFixtureSession()

	first := svc.Schedule(session, []models.Subject{
		unslottedSubject("a"), unslottedSubject("b"), unslottedSubject("c"),
	})
	require.Empty(t, first.Conflicts)

	second := svc.Schedule(session, first.Subjects)
	require.Empty(t, second.Conflicts)
	assert.Equal(t, first.Subjects, second.Subjects)
	assert.Equal(t, first.ScheduledCount, second.ScheduledCount)
}

func TestScheduleDuplicateSlotReportsClashAndRelocatesLoser(t *testing.T) {
	svc := NewSchedulerService(DefaultSlotTemplate(), nil)
	session := schedulerFixtureSession()

	winner := unslottedSubject("a")
	winner.ExamDate, winner.StartTime, winner.EndTime = "2025-04-01", "09:30", "12:30"
	loser := unslottedSubject("b")
	loser.ExamDate, loser.StartTime, loser.EndTime = "2025-04-01", "09:30", "12:30"

	result := svc.Schedule(session, []models.Subject{winner, loser})
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "b", result.Conflicts[0].SubjectID)
	assert.Contains(t, result.Conflicts[0].Issue, "Clash detected")
	assert.LessOrEqual(t, len(result.Conflicts[0].Suggestions), 6)

	// first claimant keeps its slot, the loser moves to the next free window
	assert.Equal(t, models.Slot{ExamDate: "2025-04-01", StartTime: "09:30", EndTime: "12:30"}, slotOf(result.Subjects[0]))
	assert.NotEqual(t, slotOf(result.Subjects[0]), slotOf(result.Subjects[1]))
	assert.Equal(t, 2, result.ScheduledCount)
}

func TestScheduleSkipsPlannedAndForeignSubjects(t *testing.T) {
	svc := NewSchedulerService(DefaultSlotTemplate(), nil)

	planned := unslottedSubject("p")
	planned.Status = models.SubjectStatusPlanned
	foreign := unslottedSubject("f")
	foreign.SessionID = "other"

	result := svc.Schedule(schedulerFixtureSession(), []models.Subject{planned, foreign})
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, 0, result.ScheduledCount)
	assert.Empty(t, result.Subjects[0].ExamDate)
	assert.Empty(t, result.Subjects[1].ExamDate)
}

func TestScheduleSeparateGroupsShareWindows(t *testing.T) {
	svc := NewSchedulerService(DefaultSlotTemplate(), nil)

	a := unslottedSubject("a")
	b := unslottedSubject("b")
	b.Batch = "2024"

	result := svc.Schedule(schedulerFixtureSession(), []models.Subject{a, b})
	require.Empty(t, result.Conflicts)
	// different groups may sit the same window in different rooms
	assert.Equal(t, slotOf(result.Subjects[0]), slotOf(result.Subjects[1]))
}

func slotOf(subject models.Subject) models.Slot {
	return models.Slot{ExamDate: subject.ExamDate, StartTime: subject.StartTime, EndTime: subject.EndTime}
}
