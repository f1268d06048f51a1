package models

import "time"

// Pending is the sentinel for ticket rooms/seats that the allocation
// simulator has not resolved yet.
const Pending = "PENDING"

// HallTicketItem is one exam line on a ticket. Room/Seat start as Pending and
// are only set by the allocation simulator or cleared back by a slot edit.
type HallTicketItem struct {
	CourseCode string `json:"courseCode"`
	CourseName string `json:"courseName"`
	ExamDate   string `json:"examDate"`
	StartTime  string `json:"startTime"`
	Room       string `json:"room"`
	Seat       string `json:"seat"`
}

// HallTicket is issued to one eligible student per session, listing every
// scheduled subject the student must sit.
type HallTicket struct {
	ID        string           `json:"id"`
	SessionID string           `json:"sessionId"`
	RegNo     string           `json:"regNo"`
	Name      string           `json:"name"`
	IssuedAt  time.Time        `json:"issuedAt"`
	Items     []HallTicketItem `json:"items"`
}
