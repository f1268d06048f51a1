package service

import (
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

// Hard-gate thresholds. All five must hold for a student to sit the exam.
const (
	minAttendancePct = 75
	minCGPA          = 6.5
	maxArrears       = 1
)

// RosterProvider supplies the student population for a session. The demo
// deployment uses SeededRosterProvider; a registrar integration would
// implement the same interface.
type RosterProvider interface {
	BuildStudents(sessionID string) []models.StudentProfile
}

// EligibilityService applies the hard eligibility gate to a session roster.
type EligibilityService struct {
	roster RosterProvider
	logger *zap.Logger
}

// NewEligibilityService wires the rule engine.
func NewEligibilityService(roster RosterProvider, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{roster: roster, logger: logger}
}

// EvaluateSession builds the roster for sessionID and evaluates every
// student. Rows replace any previous evaluation for the session.
func (s *EligibilityService) EvaluateSession(sessionID string) []models.EligibilityRow {
	students := s.roster.BuildStudents(sessionID)
	rows := make([]models.EligibilityRow, 0, len(students))
	for _, student := range students {
		rows = append(rows, s.Evaluate(sessionID, student))
	}

	eligible := 0
	for _, row := range rows {
		if row.Eligible {
			eligible++
		}
	}
	s.logger.Debug("eligibility evaluated",
		zap.String("session_id", sessionID),
		zap.Int("students", len(rows)),
		zap.Int("eligible", eligible),
	)
	return rows
}

// Evaluate applies the gate to a single student. The decision is boolean:
// confidence is 100 or 0 and the risk band LOW or HIGH, nothing in between.
func (s *EligibilityService) Evaluate(sessionID string, student models.StudentProfile) models.EligibilityRow {
	eligible := student.AttendancePct >= minAttendancePct &&
		student.FeeStatus == models.FeeStatusClear &&
		student.CGPA >= minCGPA &&
		student.Arrears <= maxArrears &&
		!student.Disciplinary

	row := models.EligibilityRow{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		RegNo:         student.RegNo,
		Name:          student.Name,
		AttendancePct: student.AttendancePct,
		FeeStatus:     student.FeeStatus,
		Eligible:      eligible,
	}
	if eligible {
		row.Reason = "Eligible"
		row.ConfidencePct = 100
		row.RiskBand = models.RiskBandLow
	} else {
		row.Reason = "Not eligible"
		row.ConfidencePct = 0
		row.RiskBand = models.RiskBandHigh
	}
	return row
}

var (
	rosterFirstNames = []string{
		"Aarav", "Diya", "Vihaan", "Ananya", "Arjun", "Ishita",
		"Kabir", "Meera", "Rohan", "Sanya", "Aditya", "Priya",
	}
	rosterLastNames = []string{
		"Sharma", "Patel", "Reddy", "Iyer", "Khan", "Nair",
		"Gupta", "Das", "Menon", "Joshi", "Verma", "Rao",
	}
)

// SeededRosterProvider derives a deterministic demo roster from the session
// id alone: the same session always yields the same students, distribution
// and all, with no stored state.
type SeededRosterProvider struct{}

// NewSeededRosterProvider returns the deterministic demo roster source.
func NewSeededRosterProvider() *SeededRosterProvider {
	return &SeededRosterProvider{}
}

// BuildStudents generates between 12 and 21 students seeded by the session
// id. Registration numbers are deduplicated; a collision shrinks the roster
// rather than re-rolling, keeping the stream stable.
func (p *SeededRosterProvider) BuildStudents(sessionID string) []models.StudentProfile {
	seed := uint32(1337)
	for _, c := range sessionID {
		seed += uint32(c)
	}
	rnd := newSeededRand(seed)

	n := 12 + int(rnd.next()*10)
	students := make([]models.StudentProfile, 0, n)
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		first := rosterFirstNames[int(rnd.next()*float64(len(rosterFirstNames)))]
		last := rosterLastNames[int(rnd.next()*float64(len(rosterLastNames)))]

		attendance := int(math.Round(55 + rnd.next()*45))
		fee := models.FeeStatusPending
		if rnd.next() < 0.8 {
			fee = models.FeeStatusClear
		}
		cgpa := math.Round((5.9+rnd.next()*4.0)*10) / 10
		arrears := int(rnd.next() * 3)
		disciplinary := rnd.next() < 0.10
		regNo := strconv.Itoa(192211650 + i + int(rnd.next()*8))

		if seen[regNo] {
			continue
		}
		seen[regNo] = true
		students = append(students, models.StudentProfile{
			RegNo:         regNo,
			Name:          fmt.Sprintf("%s %s", first, last),
			AttendancePct: attendance,
			FeeStatus:     fee,
			CGPA:          cgpa,
			Arrears:       arrears,
			Disciplinary:  disciplinary,
		})
	}
	return students
}

// seededRand is a tiny 32-bit PRNG (mulberry32). Quality is irrelevant here;
// stability of the output stream across runs and platforms is the point.
type seededRand struct {
	state uint32
}

func newSeededRand(seed uint32) *seededRand {
	return &seededRand{state: seed}
}

func (r *seededRand) next() float64 {
	r.state += 0x6d2b79f5
	x := r.state
	x = (x ^ (x >> 15)) * (x | 1)
	x ^= x + (x^(x>>7))*(x|61)
	x ^= x >> 14
	return float64(x) / 4294967296
}
