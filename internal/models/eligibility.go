package models

// FeeStatus reflects the student's financial clearance.
type FeeStatus string

const (
	FeeStatusClear   FeeStatus = "CLEAR"
	FeeStatusPending FeeStatus = "PENDING"
)

// RiskBand classifies an eligibility decision. The hard gate only ever
// produces LOW or HIGH; MEDIUM is kept for API fidelity.
type RiskBand string

const (
	RiskBandLow    RiskBand = "LOW"
	RiskBandMedium RiskBand = "MEDIUM"
	RiskBandHigh   RiskBand = "HIGH"
)

// StudentProfile holds the academic/financial attributes the rule engine
// evaluates.
type StudentProfile struct {
	RegNo         string    `json:"regNo"`
	Name          string    `json:"name"`
	AttendancePct int       `json:"attendancePct"`
	FeeStatus     FeeStatus `json:"feeStatus"`
	CGPA          float64   `json:"cgpa"`
	Arrears       int       `json:"arrears"`
	Disciplinary  bool      `json:"disciplinary"`
}

// EligibilityRow is one evaluation per (session, student). Rows are
// regenerated wholesale every run, never patched.
type EligibilityRow struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	RegNo         string    `json:"regNo"`
	Name          string    `json:"name"`
	AttendancePct int       `json:"attendancePct"`
	FeeStatus     FeeStatus `json:"feeStatus"`
	Eligible      bool      `json:"eligible"`
	Reason        string    `json:"reason"`
	ConfidencePct int       `json:"confidencePct"`
	RiskBand      RiskBand  `json:"riskBand"`
}
