package dto

// CreateSessionRequest opens a new exam session with an inclusive date window.
type CreateSessionRequest struct {
	Title     string `json:"title" validate:"required"`
	Term      string `json:"term"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// AddSubjectRequest registers one exam paper inside a session. The slot
// fields are optional; the scheduler assigns missing slots on the next run.
type AddSubjectRequest struct {
	CourseCode string `json:"courseCode" validate:"required"`
	CourseName string `json:"courseName" validate:"required"`
	ExamDate   string `json:"examDate" validate:"omitempty,datetime=2006-01-02"`
	StartTime  string `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime    string `json:"endTime" validate:"omitempty,datetime=15:04"`
	Batch      string `json:"batch"`
	Semester   string `json:"semester"`
}

// EditSlotRequest postpones a subject to a new date/time window.
type EditSlotRequest struct {
	ExamDate  string `json:"examDate" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"required,datetime=15:04"`
}

// ListQuery carries pagination parameters for list endpoints.
type ListQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// ExportQuery selects which collection and rendering to download.
type ExportQuery struct {
	Collection string `form:"collection"`
	Format     string `form:"format"`
}

// ArchiveRequest queues a background export render for later download.
type ArchiveRequest struct {
	Collection string `json:"collection"`
	Format     string `json:"format"`
}
