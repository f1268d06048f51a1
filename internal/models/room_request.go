package models

import "time"

// RoomRequestStatus tracks the request lifecycle. NEW is accepted as a
// synonym of PENDING when resolving, for compatibility with upstream feeds.
type RoomRequestStatus string

const (
	RoomRequestStatusPending   RoomRequestStatus = "PENDING"
	RoomRequestStatusNew       RoomRequestStatus = "NEW"
	RoomRequestStatusAllocated RoomRequestStatus = "ALLOCATED"
	RoomRequestStatusFailed    RoomRequestStatus = "FAILED"
	RoomRequestStatusCancelled RoomRequestStatus = "CANCELLED"
)

// RequesterRole identifies who raised the room request.
type RequesterRole string

const (
	RequesterRoleAdmin   RequesterRole = "ADMIN"
	RequesterRoleFaculty RequesterRole = "FACULTY"
	RequesterRoleSystem  RequesterRole = "SYSTEM"
)

// RoomPurpose scopes the request to a booking category.
type RoomPurpose string

const (
	RoomPurposeExam    RoomPurpose = "EXAM"
	RoomPurposeClass   RoomPurpose = "CLASS"
	RoomPurposeSeminar RoomPurpose = "SEMINAR"
	RoomPurposeEvent   RoomPurpose = "EVENT"
)

// SeatPlan indicates how seats inside the allocated room are assigned.
type SeatPlan string

const (
	SeatPlanAuto   SeatPlan = "AUTO"
	SeatPlanManual SeatPlan = "MANUAL"
)

// RoomRequest is emitted once per scheduled subject and resolved by the
// deferred allocation simulator. A slot edit on the owning subject resets it
// to PENDING and clears the allocated room.
type RoomRequest struct {
	ID                string            `json:"id"`
	RequestedAt       time.Time         `json:"requestedAt"`
	RequesterRole     RequesterRole     `json:"requesterRole"`
	RequesterID       string            `json:"requesterId,omitempty"`
	Purpose           RoomPurpose       `json:"purpose"`
	SessionID         string            `json:"sessionId"`
	SubjectID         string            `json:"subjectId"`
	Title             string            `json:"title"`
	StartAt           time.Time         `json:"startAt"`
	EndAt             time.Time         `json:"endAt"`
	CapacityRequired  int               `json:"capacityRequired"`
	NeedsProjector    bool              `json:"needsProjector"`
	NeedsAC           bool              `json:"needsAC"`
	Status            RoomRequestStatus `json:"status"`
	AllocatedRoomCode string            `json:"allocatedRoomCode,omitempty"`
	AllocatedSeatPlan SeatPlan          `json:"allocatedSeatPlan,omitempty"`
}
