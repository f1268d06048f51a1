package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-api/internal/dto"
	"github.com/noah-isme/sma-exam-api/internal/models"
	"github.com/noah-isme/sma-exam-api/internal/repository"
	appErrors "github.com/noah-isme/sma-exam-api/pkg/errors"
)

func newExamFixture(t *testing.T) (*ExamService, *repository.ExamStore) {
	t.Helper()
	store := repository.NewExamStore()
	cacheRepo := repository.NewCacheRepository(nil, zap.NewNop())
	allocation := NewAllocationService(store, AllocationConfig{
		RoomPool:    testRoomPool,
		Delay:       5 * time.Millisecond,
		CapacityMin: 30,
		CapacityMax: 140,
	}, nil, nil)
	svc := NewExamService(
		store,
		cacheRepo,
		NewSchedulerService(DefaultSlotTemplate(), nil),
		NewEligibilityService(NewSeededRosterProvider(), nil),
		NewTicketService(nil),
		allocation,
		nil,
		ExamServiceConfig{RunCacheTTL: time.Minute},
		nil,
	)
	t.Cleanup(svc.Close)
	return svc, store
}

func createFixtureSession(t *testing.T, svc *ExamService, start, end string) models.Session {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), dto.CreateSessionRequest{
		Title:     "Midterm",
		Term:      "2025-S1",
		StartDate: start,
		EndDate:   end,
	})
	require.NoError(t, err)
	return session
}

func addFixtureSubject(t *testing.T, svc *ExamService, sessionID, code string) models.Subject {
	t.Helper()
	subject, err := svc.AddSubject(context.Background(), sessionID, dto.AddSubjectRequest{
		CourseCode: code,
		CourseName: "Course " + code,
		Batch:      "2023",
		Semester:   "4",
	})
	require.NoError(t, err)
	return subject
}

func TestCreateSessionValidation(t *testing.T) {
	svc, _ := newExamFixture(t)
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, dto.CreateSessionRequest{Title: "", StartDate: "2025-04-01", EndDate: "2025-04-02"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateSession(ctx, dto.CreateSessionRequest{Title: "   ", StartDate: "2025-04-01", EndDate: "2025-04-02"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateSession(ctx, dto.CreateSessionRequest{Title: "Finals", StartDate: "2025-04-05", EndDate: "2025-04-01"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	session, err := svc.CreateSession(ctx, dto.CreateSessionRequest{Title: "  Finals  ", StartDate: "2025-04-01", EndDate: "2025-04-05"})
	require.NoError(t, err)
	assert.Equal(t, "Finals", session.Title)
	assert.Equal(t, models.SessionStatusDraft, session.Status)
}

func TestListSessionsNewestFirstWithPagination(t *testing.T) {
	svc, _ := newExamFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		createFixtureSession(t, svc, "2025-04-01", "2025-04-02")
		time.Sleep(time.Millisecond)
	}

	sessions, pagination := svc.ListSessions(ctx, dto.ListQuery{Page: 1, Limit: 2})
	assert.Len(t, sessions, 2)
	assert.Equal(t, 3, pagination.TotalCount)
	assert.True(t, !sessions[0].CreatedAt.Before(sessions[1].CreatedAt))

	rest, _ := svc.ListSessions(ctx, dto.ListQuery{Page: 2, Limit: 2})
	assert.Len(t, rest, 1)
}

func TestAddSubjectRejectsSlotOutsideWindow(t *testing.T) {
	svc, _ := newExamFixture(t)
	session := createFixtureSession(t, svc, "2025-04-01", "2025-04-03")

	_, err := svc.AddSubject(context.Background(), session.ID, dto.AddSubjectRequest{
		CourseCode: "cs101",
		CourseName: "Programming",
		ExamDate:   "2025-04-09",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAddSubjectDefaultsAndNormalises(t *testing.T) {
	svc, _ := newExamFixture(t)
	session := createFixtureSession(t, svc, "2025-04-01", "2025-04-03")

	subject, err := svc.AddSubject(context.Background(), session.ID, dto.AddSubjectRequest{
		CourseCode: " cs101 ",
		CourseName: " Programming ",
		ExamDate:   "2025-04-02",
	})
	require.NoError(t, err)
	assert.Equal(t, "CS101", subject.CourseCode)
	assert.Equal(t, "Programming", subject.CourseName)
	assert.Equal(t, "09:30", subject.StartTime)
	assert.Equal(t, "12:30", subject.EndTime)
	assert.Equal(t, models.SubjectStatusPublished, subject.Status)
}

func TestRunSessionRequiresPublishedSubjects(t *testing.T) {
	svc, _ := newExamFixture(t)
	session := createFixtureSession(t, svc, "2025-04-01", "2025-04-02")

	_, err := svc.RunSession(context.Background(), session.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestRunSessionHappyPath(t *testing.T) {
	svc, store := newExamFixture(t)
	ctx := context.Background()
	session := createFixtureSession(t, svc, "2025-04-01", "2025-04-02")
	for _, code := range []string{"CS101", "CS102", "CS103"} {
		addFixtureSubject(t, svc, session.ID, code)
	}

	run, err := svc.RunSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.Empty(t, run.Meta.Conflicts)
	assert.Equal(t, 3, run.Meta.ScheduledSubjects)
	assert.Equal(t, 3, run.Meta.TotalSubjects)
	assert.Equal(t, run.Meta.EligibleCount, run.Meta.TicketsIssued)
	assert.Equal(t, 3, run.Meta.RoomRequestsCreated)
	assert.Contains(t, run.Message, "Schedule committed")

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, got.Status)

	subjects, err := svc.ListSubjects(ctx, session.ID)
	require.NoError(t, err)
	for _, subject := range subjects {
		assert.NotEmpty(t, subject.ExamDate)
	}

	rows, err := svc.ListEligibility(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Meta.EligibleCount+run.Meta.IneligibleCount, len(rows))

	tickets, err := svc.ListTickets(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, tickets, run.Meta.TicketsIssued)
	for _, ticket := range tickets {
		assert.Len(t, ticket.Items, 3)
	}

	// deferred allocation resolves the requests shortly after the run
	assert.Eventually(t, func() bool {
		for _, request := range store.ListRoomRequests(session.ID) {
			if request.Status == models.RoomRequestStatusPending {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
}

func TestRunSessionConflictMarksFailedAndSessionScheduled(t *testing.T) {
	svc, _ := newExamFixture(t)
	ctx := context.Background()
	// one day = two windows, three subjects in one group cannot all fit
	session := createFixtureSession(t, svc, "2025-04-01", "2025-04-01")
	for _, code := range []string{"CS101", "CS102", "CS103"} {
		addFixtureSubject(t, svc, session.ID, code)
	}

	run, err := svc.RunSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Len(t, run.Meta.Conflicts, 1)
	assert.Equal(t, 2, run.Meta.ScheduledSubjects)
	assert.Contains(t, run.Message, "Partial commit (2/3)")

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusScheduled, got.Status)
}

func TestRunSessionReplacesPriorRun(t *testing.T) {
	svc, _ := newExamFixture(t)
	ctx := context.Background()
	session := createFixtureSession(t, svc, "2025-04-01", "2025-04-02")
	addFixtureSubject(t, svc, session.ID, "CS101")

	first, err := svc.RunSession(ctx, session.ID)
	require.NoError(t, err)
	second, err := svc.RunSession(ctx, session.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	last, err := svc.LastRun(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, last.ID)
}

func TestEditSlotResetsDownstreamState(t *testing.T) {
	svc, store := newExamFixture(t)
	ctx := context.Background()
	session := createFixtureSession(t, svc, "2025-04-01", "2025-04-03")
	addFixtureSubject(t, svc, session.ID, "CS101")
	addFixtureSubject(t, svc, session.ID, "CS102")

	run, err := svc.RunSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusSuccess, run.Status)

	// resolve allocation synchronously so there is state to reset
	svc.allocation.Cancel(session.ID)
	svc.allocation.RunPass(session.ID)

	subjects, err := svc.ListSubjects(ctx, session.ID)
	require.NoError(t, err)
	target := subjects[0]

	updated, err := svc.EditSubjectSlot(ctx, target.ID, dto.EditSlotRequest{
		ExamDate:  "2025-04-03",
		StartTime: "13:30",
		EndTime:   "16:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-04-03", updated.ExamDate)

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusScheduled, got.Status)

	for _, ticket := range store.ListTickets(session.ID) {
		for _, item := range ticket.Items {
			if item.CourseCode != target.CourseCode {
				continue
			}
			assert.Equal(t, "2025-04-03", item.ExamDate)
			assert.Equal(t, "13:30", item.StartTime)
			assert.Equal(t, models.Pending, item.Room)
			assert.Equal(t, models.Pending, item.Seat)
		}
	}
	for _, request := range store.ListRoomRequests(session.ID) {
		if request.SubjectID != target.ID {
			continue
		}
		assert.Equal(t, models.RoomRequestStatusPending, request.Status)
		assert.Empty(t, request.AllocatedRoomCode)
	}
}

func TestEditSlotRejectsOutOfWindowAndInvertedTimes(t *testing.T) {
	svc, _ := newExamFixture(t)
	ctx := context.Background()
	session := createFixtureSession(t, svc, "2025-04-01", "2025-04-03")
	subject := addFixtureSubject(t, svc, session.ID, "CS101")

	_, err := svc.EditSubjectSlot(ctx, subject.ID, dto.EditSlotRequest{ExamDate: "2025-04-09", StartTime: "09:30", EndTime: "12:30"})
	require.Error(t, err)

	_, err = svc.EditSubjectSlot(ctx, subject.ID, dto.EditSlotRequest{ExamDate: "2025-04-02", StartTime: "12:30", EndTime: "09:30"})
	require.Error(t, err)
}

func TestDeleteSessionCascades(t *testing.T) {
	svc, store := newExamFixture(t)
	ctx := context.Background()
	session := createFixtureSession(t, svc, "2025-04-01", "2025-04-02")
	addFixtureSubject(t, svc, session.ID, "CS101")

	_, err := svc.RunSession(ctx, session.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSession(ctx, session.ID))

	_, err = svc.GetSession(ctx, session.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.ListSubjects(session.ID))
	assert.Empty(t, store.ListEligibility(session.ID))
	assert.Empty(t, store.ListTickets(session.ID))
	assert.Empty(t, store.ListRoomRequests(session.ID))

	err = svc.DeleteSession(ctx, session.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPublishAllFlipsPlannedSubjects(t *testing.T) {
	svc, store := newExamFixture(t)
	ctx := context.Background()
	session := createFixtureSession(t, svc, "2025-04-01", "2025-04-02")

	planned := models.Subject{ID: "sub-planned", SessionID: session.ID, CourseCode: "CS900", CourseName: "Imported", Status: models.SubjectStatusPlanned}
	store.CreateSubject(planned)

	subjects, err := svc.PublishAll(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, models.SubjectStatusPublished, subjects[0].Status)
}

func TestSimulateAllocationUnknownSession(t *testing.T) {
	svc, _ := newExamFixture(t)
	err := svc.SimulateAllocation(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
