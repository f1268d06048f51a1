package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-api/internal/models"
	"github.com/noah-isme/sma-exam-api/internal/repository"
	"github.com/noah-isme/sma-exam-api/pkg/errors"
	"github.com/noah-isme/sma-exam-api/pkg/export"
)

// Exportable collections and renderings.
const (
	CollectionSubjects     = "subjects"
	CollectionEligibility  = "eligibility"
	CollectionTickets      = "tickets"
	CollectionRoomRequests = "room-requests"
	CollectionRun          = "run"
	CollectionBundle       = "bundle"

	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
)

// ExportResult is a rendered download.
type ExportResult struct {
	ContentType string
	Filename    string
	Body        []byte
}

// ExportService renders session collections as JSON, CSV or PDF downloads.
type ExportService struct {
	store  *repository.ExamStore
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService wires the exporters.
func NewExportService(store *repository.ExamStore, csv *export.CSVExporter, pdf *export.PDFExporter, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{store: store, csv: csv, pdf: pdf, logger: logger}
}

// Export renders one collection of the session in the requested format.
// Collection defaults to bundle and format to json. The bundle has no CSV
// rendering; everything else supports all three formats.
func (s *ExportService) Export(ctx context.Context, sessionID, collection, format string) (ExportResult, error) {
	session, ok := s.store.FindSession(sessionID)
	if !ok {
		return ExportResult{}, errors.Clone(errors.ErrNotFound, "session not found")
	}
	if collection == "" {
		collection = CollectionBundle
	}
	if format == "" {
		format = FormatJSON
	}

	switch collection {
	case CollectionSubjects:
		return s.render(collection, format, session, s.subjectsDataset(sessionID), s.store.ListSubjects(sessionID))
	case CollectionEligibility:
		return s.render(collection, format, session, s.eligibilityDataset(sessionID), s.store.ListEligibility(sessionID))
	case CollectionTickets:
		return s.exportTickets(format, session)
	case CollectionRoomRequests:
		return s.render(collection, format, session, s.roomRequestsDataset(sessionID), s.store.ListRoomRequests(sessionID))
	case CollectionRun:
		return s.exportRun(format, session)
	case CollectionBundle:
		return s.exportBundle(format, session)
	default:
		return ExportResult{}, errors.Clone(errors.ErrValidation, fmt.Sprintf("unknown collection %q", collection))
	}
}

func (s *ExportService) render(collection, format string, session models.Session, dataset export.Dataset, raw interface{}) (ExportResult, error) {
	switch format {
	case FormatJSON:
		body, err := json.MarshalIndent(raw, "", "  ")
		if err != nil {
			return ExportResult{}, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "export encoding failed")
		}
		return s.result(collection, session.ID, FormatJSON, body), nil
	case FormatCSV:
		body, err := s.csv.Render(dataset)
		if err != nil {
			return ExportResult{}, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "export encoding failed")
		}
		return s.result(collection, session.ID, FormatCSV, body), nil
	case FormatPDF:
		body, err := s.pdf.Render(dataset, fmt.Sprintf("%s - %s", session.Title, collection))
		if err != nil {
			return ExportResult{}, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "export encoding failed")
		}
		return s.result(collection, session.ID, FormatPDF, body), nil
	default:
		return ExportResult{}, errors.Clone(errors.ErrValidation, fmt.Sprintf("unknown format %q", format))
	}
}

// exportTickets renders tickets; the PDF variant emits one section per
// ticket so each student's items print as their own block.
func (s *ExportService) exportTickets(format string, session models.Session) (ExportResult, error) {
	tickets := s.store.ListTickets(session.ID)
	if format != FormatPDF {
		return s.render(CollectionTickets, format, session, s.ticketsDataset(tickets), tickets)
	}

	itemHeaders := []string{"Course", "Title", "Date", "Start", "Room", "Seat"}
	sections := make([]export.Section, 0, len(tickets))
	for _, ticket := range tickets {
		rows := make([]map[string]string, 0, len(ticket.Items))
		for _, item := range ticket.Items {
			rows = append(rows, datasetRow(itemHeaders,
				item.CourseCode, item.CourseName, item.ExamDate, item.StartTime, item.Room, item.Seat))
		}
		sections = append(sections, export.Section{
			Heading: fmt.Sprintf("%s - %s", ticket.RegNo, ticket.Name),
			Data:    export.Dataset{Headers: itemHeaders, Rows: rows},
		})
	}
	body, err := s.pdf.RenderSections(fmt.Sprintf("%s - Hall Tickets", session.Title), sections)
	if err != nil {
		return ExportResult{}, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "export encoding failed")
	}
	return s.result(CollectionTickets, session.ID, FormatPDF, body), nil
}

func (s *ExportService) exportRun(format string, session models.Session) (ExportResult, error) {
	run, ok := s.store.FindRun(session.ID)
	if !ok {
		return ExportResult{}, errors.Clone(errors.ErrNotFound, "no run recorded for session")
	}
	return s.render(CollectionRun, format, session, s.runDataset(run), run)
}

// exportBundle emits every collection at once: JSON as one document, PDF as
// one section per collection. CSV cannot represent the mixed schemas.
func (s *ExportService) exportBundle(format string, session models.Session) (ExportResult, error) {
	switch format {
	case FormatJSON:
		bundle := map[string]interface{}{
			"session":      session,
			"subjects":     s.store.ListSubjects(session.ID),
			"eligibility":  s.store.ListEligibility(session.ID),
			"tickets":      s.store.ListTickets(session.ID),
			"roomRequests": s.store.ListRoomRequests(session.ID),
		}
		if run, ok := s.store.FindRun(session.ID); ok {
			bundle["run"] = run
		}
		body, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return ExportResult{}, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "export encoding failed")
		}
		return s.result(CollectionBundle, session.ID, FormatJSON, body), nil
	case FormatPDF:
		sections := []export.Section{
			{Heading: "Subjects", Data: s.subjectsDataset(session.ID)},
			{Heading: "Eligibility", Data: s.eligibilityDataset(session.ID)},
			{Heading: "Hall Tickets", Data: s.ticketsDataset(s.store.ListTickets(session.ID))},
			{Heading: "Room Requests", Data: s.roomRequestsDataset(session.ID)},
		}
		if run, ok := s.store.FindRun(session.ID); ok {
			sections = append(sections, export.Section{Heading: "Last Run", Data: s.runDataset(run)})
		}
		body, err := s.pdf.RenderSections(fmt.Sprintf("%s - Export", session.Title), sections)
		if err != nil {
			return ExportResult{}, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "export encoding failed")
		}
		return s.result(CollectionBundle, session.ID, FormatPDF, body), nil
	default:
		return ExportResult{}, errors.Clone(errors.ErrValidation, "bundle supports json and pdf only")
	}
}

// datasetRow zips values into a header-keyed row for the exporters.
func datasetRow(headers []string, values ...string) map[string]string {
	row := make(map[string]string, len(headers))
	for i, header := range headers {
		if i < len(values) {
			row[header] = values[i]
		}
	}
	return row
}

func (s *ExportService) subjectsDataset(sessionID string) export.Dataset {
	headers := []string{"Course", "Title", "Date", "Start", "End", "Batch", "Semester", "Status"}
	subjects := s.store.ListSubjects(sessionID)
	rows := make([]map[string]string, 0, len(subjects))
	for _, subject := range subjects {
		rows = append(rows, datasetRow(headers,
			subject.CourseCode, subject.CourseName, subject.ExamDate,
			subject.StartTime, subject.EndTime, subject.Batch, subject.Semester, string(subject.Status),
		))
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func (s *ExportService) eligibilityDataset(sessionID string) export.Dataset {
	headers := []string{"RegNo", "Name", "Attendance%", "Fees", "Eligible", "Reason", "Confidence%", "Risk"}
	rows := s.store.ListEligibility(sessionID)
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, datasetRow(headers,
			row.RegNo, row.Name, strconv.Itoa(row.AttendancePct), string(row.FeeStatus),
			strconv.FormatBool(row.Eligible), row.Reason, strconv.Itoa(row.ConfidencePct), string(row.RiskBand),
		))
	}
	return export.Dataset{Headers: headers, Rows: out}
}

func (s *ExportService) ticketsDataset(tickets []models.HallTicket) export.Dataset {
	headers := []string{"RegNo", "Name", "Course", "Date", "Start", "Room", "Seat"}
	rows := make([]map[string]string, 0, len(tickets))
	for _, ticket := range tickets {
		for _, item := range ticket.Items {
			rows = append(rows, datasetRow(headers,
				ticket.RegNo, ticket.Name, item.CourseCode, item.ExamDate, item.StartTime, item.Room, item.Seat,
			))
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func (s *ExportService) roomRequestsDataset(sessionID string) export.Dataset {
	headers := []string{"Title", "Start", "End", "Capacity", "Status", "Room", "SeatPlan"}
	requests := s.store.ListRoomRequests(sessionID)
	rows := make([]map[string]string, 0, len(requests))
	for _, request := range requests {
		rows = append(rows, datasetRow(headers,
			request.Title,
			request.StartAt.Format(time.RFC3339),
			request.EndAt.Format(time.RFC3339),
			strconv.Itoa(request.CapacityRequired),
			string(request.Status),
			request.AllocatedRoomCode,
			string(request.AllocatedSeatPlan),
		))
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func (s *ExportService) runDataset(run models.Run) export.Dataset {
	headers := []string{"RequestedAt", "Status", "Scheduled", "Total", "Eligible", "Tickets", "Conflicts", "Message"}
	rows := []map[string]string{datasetRow(headers,
		run.RequestedAt.Format(time.RFC3339),
		string(run.Status),
		strconv.Itoa(run.Meta.ScheduledSubjects),
		strconv.Itoa(run.Meta.TotalSubjects),
		strconv.Itoa(run.Meta.EligibleCount),
		strconv.Itoa(run.Meta.TicketsIssued),
		strconv.Itoa(len(run.Meta.Conflicts)),
		run.Message,
	)}
	return export.Dataset{Headers: headers, Rows: rows}
}

func (s *ExportService) result(collection, sessionID, format string, body []byte) ExportResult {
	contentType := "application/json"
	switch format {
	case FormatCSV:
		contentType = "text/csv"
	case FormatPDF:
		contentType = "application/pdf"
	}
	return ExportResult{
		ContentType: contentType,
		Filename:    fmt.Sprintf("exam-%s-%s.%s", collection, sessionID, format),
		Body:        body,
	}
}
