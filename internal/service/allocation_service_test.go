package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-exam-api/internal/models"
	"github.com/noah-isme/sma-exam-api/internal/repository"
)

var testRoomPool = []string{"A-101", "A-102", "A-201", "B-103", "B-202", "C-105", "C-206", "D-110", "D-210"}

type countingObserver struct {
	mu    sync.Mutex
	calls int
}

func (o *countingObserver) AllocationResolved(allocated, failed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
}

func (o *countingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func newAllocationFixture(delay time.Duration, observer AllocationObserver) (*AllocationService, *repository.ExamStore) {
	store := repository.NewExamStore()
	svc := NewAllocationService(store, AllocationConfig{
		RoomPool:    testRoomPool,
		Delay:       delay,
		CapacityMin: 30,
		CapacityMax: 140,
	}, observer, nil)
	return svc, store
}

func seedAllocationSession(store *repository.ExamStore, subjectCount int) (models.Session, []models.Subject) {
	session := models.Session{ID: "sess-1", Title: "Midterm", StartDate: "2025-04-01", EndDate: "2025-04-10"}
	store.CreateSession(session)

	subjects := make([]models.Subject, 0, subjectCount)
	for i := 0; i < subjectCount; i++ {
		subject := models.Subject{
			ID:         fmt.Sprintf("sub-%d", i),
			SessionID:  session.ID,
			CourseCode: fmt.Sprintf("CS%02d", i),
			CourseName: fmt.Sprintf("Course %d", i),
			ExamDate:   fmt.Sprintf("2025-04-%02d", i/2+1),
			StartTime:  []string{"09:30", "13:30"}[i%2],
			EndTime:    []string{"12:30", "16:30"}[i%2],
			Status:     models.SubjectStatusPublished,
		}
		store.CreateSubject(subject)
		subjects = append(subjects, subject)
	}
	return session, subjects
}

func TestBuildRequestsCapacityAndShape(t *testing.T) {
	svc, store := newAllocationFixture(time.Millisecond, nil)
	session, subjects := seedAllocationSession(store, 4)

	now := time.Now().UTC()
	requests := svc.BuildRequests(session, subjects, 100, now)
	require.Len(t, requests, 4)

	// ceil(100*0.9)=90, staggered by position
	assert.Equal(t, 90, requests[0].CapacityRequired)
	assert.Equal(t, 100, requests[1].CapacityRequired)
	assert.Equal(t, 110, requests[2].CapacityRequired)
	assert.Equal(t, 90, requests[3].CapacityRequired)

	for i, request := range requests {
		assert.Equal(t, models.RoomRequestStatusPending, request.Status)
		assert.Equal(t, models.RequesterRoleSystem, request.RequesterRole)
		assert.Equal(t, "exam", request.RequesterID)
		assert.Equal(t, models.RoomPurposeExam, request.Purpose)
		assert.Equal(t, subjects[i].ID, request.SubjectID)
		assert.True(t, request.NeedsAC)
		assert.False(t, request.NeedsProjector)
		assert.True(t, request.EndAt.After(request.StartAt))
	}
}

func TestBuildRequestsClampsCapacity(t *testing.T) {
	svc, store := newAllocationFixture(time.Millisecond, nil)
	session, subjects := seedAllocationSession(store, 1)

	small := svc.BuildRequests(session, subjects, 3, time.Now())
	assert.Equal(t, 30, small[0].CapacityRequired)

	large := svc.BuildRequests(session, subjects, 500, time.Now())
	assert.Equal(t, 140, large[0].CapacityRequired)
}

func TestRunPassAllocatesRoundRobinAndFailsEveryThirteenth(t *testing.T) {
	svc, store := newAllocationFixture(time.Millisecond, nil)
	session, subjects := seedAllocationSession(store, 11)

	store.ReplaceRoomRequests(session.ID, svc.BuildRequests(session, subjects, 40, time.Now()))
	svc.RunPass(session.ID)

	requests := store.ListRoomRequests(session.ID)
	require.Len(t, requests, 11)
	for idx, request := range requests {
		if idx == 9 {
			assert.Equal(t, models.RoomRequestStatusFailed, request.Status)
			assert.Empty(t, request.AllocatedRoomCode)
			continue
		}
		assert.Equal(t, models.RoomRequestStatusAllocated, request.Status)
		assert.Equal(t, testRoomPool[idx%len(testRoomPool)], request.AllocatedRoomCode)
		assert.Equal(t, models.SeatPlanAuto, request.AllocatedSeatPlan)
	}
}

func TestRunPassPropagatesRoomsAndSeatsToTickets(t *testing.T) {
	svc, store := newAllocationFixture(time.Millisecond, nil)
	session, subjects := seedAllocationSession(store, 2)

	ticket := models.HallTicket{
		ID: "t-1", SessionID: session.ID, RegNo: "192211654", Name: "Diya Patel",
		IssuedAt: time.Now(),
		Items: []models.HallTicketItem{
			{CourseCode: subjects[0].CourseCode, ExamDate: subjects[0].ExamDate, StartTime: subjects[0].StartTime, Room: models.Pending, Seat: models.Pending},
			{CourseCode: subjects[1].CourseCode, ExamDate: subjects[1].ExamDate, StartTime: subjects[1].StartTime, Room: models.Pending, Seat: models.Pending},
		},
	}
	store.ReplaceTickets(session.ID, []models.HallTicket{ticket})
	store.ReplaceRoomRequests(session.ID, svc.BuildRequests(session, subjects, 40, time.Now()))

	svc.RunPass(session.ID)

	got := store.ListTickets(session.ID)[0]
	assert.Equal(t, "A-101", got.Items[0].Room)
	assert.Equal(t, "A-102", got.Items[1].Room)
	// regNo 192211654 -> last two digits 54; (54+0*7)%60=54, (54+7)%60=1
	assert.Equal(t, "S-54", got.Items[0].Seat)
	assert.Equal(t, "S-01", got.Items[1].Seat)
}

func TestRunPassLeavesUnmatchedItemsPending(t *testing.T) {
	svc, store := newAllocationFixture(time.Millisecond, nil)
	session, subjects := seedAllocationSession(store, 1)

	// item points at a slot no live subject occupies (postponed since issue)
	ticket := models.HallTicket{
		ID: "t-1", SessionID: session.ID, RegNo: "192211650", Name: "Aarav Sharma",
		Items: []models.HallTicketItem{
			{CourseCode: subjects[0].CourseCode, ExamDate: "2025-04-09", StartTime: "09:30", Room: models.Pending, Seat: models.Pending},
		},
	}
	store.ReplaceTickets(session.ID, []models.HallTicket{ticket})
	store.ReplaceRoomRequests(session.ID, svc.BuildRequests(session, subjects, 40, time.Now()))

	svc.RunPass(session.ID)

	got := store.ListTickets(session.ID)[0]
	assert.Equal(t, models.Pending, got.Items[0].Room)
	assert.Equal(t, models.Pending, got.Items[0].Seat)
}

func TestRunPassSkipsResolvedRequests(t *testing.T) {
	svc, store := newAllocationFixture(time.Millisecond, nil)
	session, subjects := seedAllocationSession(store, 2)

	requests := svc.BuildRequests(session, subjects, 40, time.Now())
	requests[0].Status = models.RoomRequestStatusCancelled
	requests[1].Status = models.RoomRequestStatusAllocated
	requests[1].AllocatedRoomCode = "B-202"
	store.ReplaceRoomRequests(session.ID, requests)

	svc.RunPass(session.ID)

	got := store.ListRoomRequests(session.ID)
	assert.Equal(t, models.RoomRequestStatusCancelled, got[0].Status)
	assert.Equal(t, "B-202", got[1].AllocatedRoomCode)
}

func TestTriggerCollapsesIntoSinglePass(t *testing.T) {
	observer := &countingObserver{}
	svc, store := newAllocationFixture(30*time.Millisecond, observer)
	session, subjects := seedAllocationSession(store, 1)
	store.ReplaceRoomRequests(session.ID, svc.BuildRequests(session, subjects, 40, time.Now()))

	svc.Trigger(session.ID)
	svc.Trigger(session.ID)
	svc.Trigger(session.ID)

	assert.Eventually(t, func() bool { return observer.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, observer.count())
}

func TestCancelStopsRearmedTimerAfterFiredPass(t *testing.T) {
	observer := &countingObserver{}
	svc, store := newAllocationFixture(10*time.Millisecond, observer)
	session, subjects := seedAllocationSession(store, 1)
	store.ReplaceRoomRequests(session.ID, svc.BuildRequests(session, subjects, 40, time.Now()))

	svc.Trigger(session.ID)
	require.Eventually(t, func() bool { return observer.count() == 1 }, time.Second, 2*time.Millisecond)

	// a fired timer must not evict its replacement from the registry
	svc.Trigger(session.ID)
	svc.Cancel(session.ID)
	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, 1, observer.count())
}

func TestCloseCancelsPendingPasses(t *testing.T) {
	observer := &countingObserver{}
	svc, store := newAllocationFixture(30*time.Millisecond, observer)
	session, subjects := seedAllocationSession(store, 1)
	store.ReplaceRoomRequests(session.ID, svc.BuildRequests(session, subjects, 40, time.Now()))

	svc.Trigger(session.ID)
	svc.Close()
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, 0, observer.count())
	assert.Equal(t, models.RoomRequestStatusPending, store.ListRoomRequests(session.ID)[0].Status)
}

func TestMakeSeat(t *testing.T) {
	assert.Equal(t, "S-54", makeSeat("192211654", 0))
	assert.Equal(t, "S-01", makeSeat("192211654", 1))
	// (60+0)%60=0 maps to seat 1
	assert.Equal(t, "S-01", makeSeat("60", 0))
	// non-numeric suffix falls back to zero
	assert.Equal(t, "S-07", makeSeat("ABC", 1))
}
