package models

import "time"

// SessionStatus represents lifecycle phases for an exam session.
type SessionStatus string

const (
	SessionStatusDraft     SessionStatus = "DRAFT"
	SessionStatusScheduled SessionStatus = "SCHEDULED"
	SessionStatusRunning   SessionStatus = "RUNNING"
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// Session is one exam period with an inclusive calendar window.
// StartDate/EndDate are ISO dates (yyyy-mm-dd); EndDate >= StartDate.
type Session struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Term      string        `json:"term"`
	StartDate string        `json:"startDate"`
	EndDate   string        `json:"endDate"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// SubjectStatus marks whether a paper participates in scheduling.
type SubjectStatus string

const (
	SubjectStatusPlanned   SubjectStatus = "PLANNED"
	SubjectStatusPublished SubjectStatus = "PUBLISHED"
)

// Subject is one exam paper belonging to exactly one session. ExamDate is an
// ISO date and StartTime/EndTime are HH:MM clock strings; all three may be
// empty until the scheduler assigns a slot.
type Subject struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"sessionId"`
	CourseCode string        `json:"courseCode"`
	CourseName string        `json:"courseName"`
	ExamDate   string        `json:"examDate"`
	StartTime  string        `json:"startTime"`
	EndTime    string        `json:"endTime"`
	Batch      string        `json:"batch"`
	Semester   string        `json:"semester"`
	Status     SubjectStatus `json:"status"`
}

// Slot is one (date, window) candidate from the session's slot pool.
type Slot struct {
	ExamDate  string `json:"examDate"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}
