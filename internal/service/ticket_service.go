package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

// TicketService issues hall tickets for eligible students after a scheduling
// run. Tickets are regenerated wholesale each run; room/seat start PENDING
// and are filled in by allocation.
type TicketService struct {
	logger *zap.Logger
}

// NewTicketService wires the hall ticket generator.
func NewTicketService(logger *zap.Logger) *TicketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{logger: logger}
}

// Issue builds one ticket per eligible row, each carrying one item per
// scheduled subject in scheduling order. Ineligible students get no ticket.
func (s *TicketService) Issue(sessionID string, rows []models.EligibilityRow, scheduled []models.Subject, issuedAt time.Time) []models.HallTicket {
	items := make([]models.HallTicketItem, 0, len(scheduled))
	for _, subject := range scheduled {
		items = append(items, models.HallTicketItem{
			CourseCode: subject.CourseCode,
			CourseName: subject.CourseName,
			ExamDate:   subject.ExamDate,
			StartTime:  subject.StartTime,
			Room:       models.Pending,
			Seat:       models.Pending,
		})
	}

	tickets := make([]models.HallTicket, 0, len(rows))
	for _, row := range rows {
		if !row.Eligible {
			continue
		}
		tickets = append(tickets, models.HallTicket{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			RegNo:     row.RegNo,
			Name:      row.Name,
			IssuedAt:  issuedAt,
			Items:     append([]models.HallTicketItem(nil), items...),
		})
	}

	s.logger.Debug("hall tickets issued",
		zap.String("session_id", sessionID),
		zap.Int("tickets", len(tickets)),
		zap.Int("items_per_ticket", len(items)),
	)
	return tickets
}
