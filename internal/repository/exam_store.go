package repository

import (
	"sort"
	"sync"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

// ExamStore is the in-memory system of record for the exam logistics core.
// Collections are keyed by id and scoped per session; all reads hand out
// copies so mutation only happens through store methods. Room requests keep
// their per-session insertion order because the allocation simulator resolves
// them by index.
type ExamStore struct {
	mu           sync.RWMutex
	sessions     map[string]models.Session
	subjects     map[string]models.Subject
	subjectOrder map[string][]string
	eligibility  map[string][]models.EligibilityRow
	tickets      map[string][]models.HallTicket
	roomRequests map[string][]models.RoomRequest
	runs         map[string]models.Run
}

// NewExamStore builds an empty store.
func NewExamStore() *ExamStore {
	return &ExamStore{
		sessions:     make(map[string]models.Session),
		subjects:     make(map[string]models.Subject),
		subjectOrder: make(map[string][]string),
		eligibility:  make(map[string][]models.EligibilityRow),
		tickets:      make(map[string][]models.HallTicket),
		roomRequests: make(map[string][]models.RoomRequest),
		runs:         make(map[string]models.Run),
	}
}

// --- Sessions ---

// CreateSession stores a new session.
func (s *ExamStore) CreateSession(session models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// FindSession returns a session by id.
func (s *ExamStore) FindSession(id string) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// ListSessions returns all sessions, newest first.
func (s *ExamStore) ListSessions() []models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		list = append(list, session)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// UpdateSessionStatus moves a session through its lifecycle.
func (s *ExamStore) UpdateSessionStatus(id string, status models.SessionStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return false
	}
	session.Status = status
	s.sessions[id] = session
	return true
}

// DeleteSession removes a session and cascades to every owned collection.
func (s *ExamStore) DeleteSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	for _, subjectID := range s.subjectOrder[id] {
		delete(s.subjects, subjectID)
	}
	delete(s.subjectOrder, id)
	delete(s.eligibility, id)
	delete(s.tickets, id)
	delete(s.roomRequests, id)
	delete(s.runs, id)
	return true
}

// --- Subjects ---

// CreateSubject appends a subject to its session in insertion order. The
// scheduler's tie-break follows this order, so callers control priority by
// controlling insertion.
func (s *ExamStore) CreateSubject(subject models.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subject.ID] = subject
	s.subjectOrder[subject.SessionID] = append(s.subjectOrder[subject.SessionID], subject.ID)
}

// FindSubject returns a subject by id.
func (s *ExamStore) FindSubject(id string) (models.Subject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[id]
	return subject, ok
}

// ListSubjects returns a session's subjects in insertion order.
func (s *ExamStore) ListSubjects(sessionID string) []models.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSubjectsLocked(sessionID)
}

func (s *ExamStore) listSubjectsLocked(sessionID string) []models.Subject {
	ids := s.subjectOrder[sessionID]
	list := make([]models.Subject, 0, len(ids))
	for _, id := range ids {
		if subject, ok := s.subjects[id]; ok {
			list = append(list, subject)
		}
	}
	return list
}

// SaveSubjects writes back modified subjects by id without disturbing order.
func (s *ExamStore) SaveSubjects(subjects []models.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, subject := range subjects {
		if _, ok := s.subjects[subject.ID]; ok {
			s.subjects[subject.ID] = subject
		}
	}
}

// --- Eligibility ---

// ReplaceEligibility swaps a session's eligibility rows wholesale.
func (s *ExamStore) ReplaceEligibility(sessionID string, rows []models.EligibilityRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eligibility[sessionID] = append([]models.EligibilityRow(nil), rows...)
}

// ListEligibility returns a session's eligibility rows.
func (s *ExamStore) ListEligibility(sessionID string) []models.EligibilityRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.EligibilityRow(nil), s.eligibility[sessionID]...)
}

// --- Hall tickets ---

// ReplaceTickets swaps a session's hall tickets wholesale.
func (s *ExamStore) ReplaceTickets(sessionID string, tickets []models.HallTicket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[sessionID] = copyTickets(tickets)
}

// ListTickets returns deep copies of a session's hall tickets.
func (s *ExamStore) ListTickets(sessionID string) []models.HallTicket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTickets(s.tickets[sessionID])
}

// UpdateTickets applies fn to the live ticket slice under the write lock.
// fn receives copies and returns the replacement slice.
func (s *ExamStore) UpdateTickets(sessionID string, fn func([]models.HallTicket) []models.HallTicket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[sessionID] = copyTickets(fn(copyTickets(s.tickets[sessionID])))
}

func copyTickets(tickets []models.HallTicket) []models.HallTicket {
	out := make([]models.HallTicket, len(tickets))
	for i, ticket := range tickets {
		ticket.Items = append([]models.HallTicketItem(nil), ticket.Items...)
		out[i] = ticket
	}
	return out
}

// --- Room requests ---

// ReplaceRoomRequests swaps a session's request list wholesale, preserving
// the given order.
func (s *ExamStore) ReplaceRoomRequests(sessionID string, requests []models.RoomRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomRequests[sessionID] = append([]models.RoomRequest(nil), requests...)
}

// ListRoomRequests returns a session's requests in insertion order.
func (s *ExamStore) ListRoomRequests(sessionID string) []models.RoomRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.RoomRequest(nil), s.roomRequests[sessionID]...)
}

// UpdateRoomRequests applies fn to the live request slice under the write
// lock. fn receives copies and returns the replacement slice.
func (s *ExamStore) UpdateRoomRequests(sessionID string, fn func([]models.RoomRequest) []models.RoomRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := append([]models.RoomRequest(nil), s.roomRequests[sessionID]...)
	s.roomRequests[sessionID] = append([]models.RoomRequest(nil), fn(current)...)
}

// --- Runs ---

// SaveRun records a run, replacing any prior run for the session.
func (s *ExamStore) SaveRun(run models.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.SessionID] = run
}

// FindRun returns the latest run for a session.
func (s *ExamStore) FindRun(sessionID string) (models.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[sessionID]
	return run, ok
}
