package models

import "time"

// RunStatus is the overall outcome of one orchestrator execution.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
)

// Conflict captures a scheduling clash or an exhausted slot pool for one
// subject. Conflicts are data surfaced for manual resolution, not errors.
type Conflict struct {
	SubjectID   string `json:"subjectId"`
	CourseCode  string `json:"courseCode"`
	Issue       string `json:"issue"`
	Suggestions []Slot `json:"suggestions"`
}

// RunMeta aggregates counters and unresolved conflicts for audit.
type RunMeta struct {
	ScheduledSubjects   int        `json:"scheduledSubjects"`
	TotalSubjects       int        `json:"totalSubjects"`
	EligibleCount       int        `json:"eligibleCount"`
	IneligibleCount     int        `json:"ineligibleCount"`
	TicketsIssued       int        `json:"ticketsIssued"`
	RoomRequestsCreated int        `json:"roomRequestsCreated"`
	Conflicts           []Conflict `json:"conflicts,omitempty"`
}

// Run is the immutable audit record of one pipeline execution. The latest run
// replaces any prior run for the same session.
type Run struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	RequestedAt time.Time `json:"requestedAt"`
	Status      RunStatus `json:"status"`
	Message     string    `json:"message"`
	Meta        RunMeta   `json:"meta"`
}
