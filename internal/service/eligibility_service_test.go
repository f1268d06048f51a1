package service

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

func passingProfile() models.StudentProfile {
	return models.StudentProfile{
		RegNo:         "192211650",
		Name:          "Aarav Sharma",
		AttendancePct: 80,
		FeeStatus:     models.FeeStatusClear,
		CGPA:          7.0,
		Arrears:       1,
		Disciplinary:  false,
	}
}

func TestEvaluateEligibleAtBoundaries(t *testing.T) {
	svc := NewEligibilityService(NewSeededRosterProvider(), nil)

	student := passingProfile()
	student.AttendancePct = 75
	student.CGPA = 6.5
	student.Arrears = 1

	row := svc.Evaluate("sess-1", student)
	assert.True(t, row.Eligible)
	assert.Equal(t, "Eligible", row.Reason)
	assert.Equal(t, 100, row.ConfidencePct)
	assert.Equal(t, models.RiskBandLow, row.RiskBand)
}

func TestEvaluateAnyFailingGateRejects(t *testing.T) {
	svc := NewEligibilityService(NewSeededRosterProvider(), nil)

	cases := map[string]func(*models.StudentProfile){
		"attendance":   func(s *models.StudentProfile) { s.AttendancePct = 74 },
		"fees":         func(s *models.StudentProfile) { s.FeeStatus = models.FeeStatusPending },
		"cgpa":         func(s *models.StudentProfile) { s.CGPA = 6.4 },
		"arrears":      func(s *models.StudentProfile) { s.Arrears = 2 },
		"disciplinary": func(s *models.StudentProfile) { s.Disciplinary = true },
	}
	for name, mutate := range cases {
		student := passingProfile()
		mutate(&student)
		row := svc.Evaluate("sess-1", student)
		assert.False(t, row.Eligible, "gate %s should reject", name)
		assert.Equal(t, "Not eligible", row.Reason)
		assert.Equal(t, 0, row.ConfidencePct)
		assert.Equal(t, models.RiskBandHigh, row.RiskBand)
	}
}

func TestSeededRosterIsDeterministic(t *testing.T) {
	provider := NewSeededRosterProvider()

	first := provider.BuildStudents("sess-alpha")
	second := provider.BuildStudents("sess-alpha")
	assert.Equal(t, first, second)

	other := provider.BuildStudents("sess-beta")
	assert.NotEqual(t, first, other)
}

func TestSeededRosterShape(t *testing.T) {
	provider := NewSeededRosterProvider()
	students := provider.BuildStudents("sess-shape")

	require.NotEmpty(t, students)
	assert.LessOrEqual(t, len(students), 21)

	seen := map[string]bool{}
	for _, student := range students {
		regNo, err := strconv.Atoi(student.RegNo)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, regNo, 192211650)
		assert.False(t, seen[student.RegNo], "duplicate regNo %s", student.RegNo)
		seen[student.RegNo] = true

		assert.GreaterOrEqual(t, student.AttendancePct, 55)
		assert.LessOrEqual(t, student.AttendancePct, 100)
		assert.GreaterOrEqual(t, student.CGPA, 5.9)
		assert.LessOrEqual(t, student.CGPA, 9.9)
		assert.GreaterOrEqual(t, student.Arrears, 0)
		assert.LessOrEqual(t, student.Arrears, 2)
		assert.NotEmpty(t, student.Name)
	}
}

func TestEvaluateSessionAssignsSessionAndIDs(t *testing.T) {
	svc := NewEligibilityService(NewSeededRosterProvider(), nil)

	rows := svc.EvaluateSession("sess-rows")
	require.NotEmpty(t, rows)
	ids := map[string]bool{}
	for _, row := range rows {
		assert.Equal(t, "sess-rows", row.SessionID)
		assert.NotEmpty(t, row.ID)
		assert.False(t, ids[row.ID])
		ids[row.ID] = true
	}
}
