package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/sma-exam-api/internal/models"
)

const dateLayout = "2006-01-02"

// SlotTemplate holds the fixed daily exam windows used to build a session's
// slot pool. Values are HH:MM clock strings.
type SlotTemplate struct {
	MorningStart   string
	MorningEnd     string
	AfternoonStart string
	AfternoonEnd   string
}

// DefaultSlotTemplate matches the institution's standard exam day.
func DefaultSlotTemplate() SlotTemplate {
	return SlotTemplate{
		MorningStart:   "09:30",
		MorningEnd:     "12:30",
		AfternoonStart: "13:30",
		AfternoonEnd:   "16:30",
	}
}

// slotsForDate expands the template into the two fixed windows for one date.
func (t SlotTemplate) slotsForDate(examDate string) []models.Slot {
	return []models.Slot{
		{ExamDate: examDate, StartTime: t.MorningStart, EndTime: t.MorningEnd},
		{ExamDate: examDate, StartTime: t.AfternoonStart, EndTime: t.AfternoonEnd},
	}
}

// enumerateDates produces the inclusive ordered sequence of calendar dates
// between two ISO dates. An unparseable or inverted range yields nil.
func enumerateDates(start, end string) []string {
	from, err := time.Parse(dateLayout, start)
	if err != nil {
		return nil
	}
	to, err := time.Parse(dateLayout, end)
	if err != nil {
		return nil
	}

	var out []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(dateLayout))
	}
	return out
}

// dateInRange reports whether date falls inside the inclusive [start, end]
// window. All three are ISO dates; lexicographic comparison is sufficient.
func dateInRange(date, start, end string) bool {
	return date >= start && date <= end
}

// minutesOfDay converts an HH:MM clock string to minutes since midnight.
// Malformed components count as zero, matching lenient upstream inputs.
func minutesOfDay(hhmm string) int {
	parts := strings.SplitN(hhmm, ":", 2)
	hh, _ := strconv.Atoi(parts[0])
	mm := 0
	if len(parts) == 2 {
		mm, _ = strconv.Atoi(parts[1])
	}
	return hh*60 + mm
}

// overlaps treats intervals as half-open in time-of-day minutes: two
// intervals overlap iff max(aStart,bStart) < min(aEnd,bEnd).
func overlaps(aStart, aEnd, bStart, bEnd string) bool {
	as, ae := minutesOfDay(aStart), minutesOfDay(aEnd)
	bs, be := minutesOfDay(bStart), minutesOfDay(bEnd)
	lo := as
	if bs > lo {
		lo = bs
	}
	hi := ae
	if be < hi {
		hi = be
	}
	return lo < hi
}

// subjectHasValidSlot reports whether a subject holds a usable slot: all
// three fields set and a strictly positive duration.
func subjectHasValidSlot(subject models.Subject) bool {
	return subject.ExamDate != "" && subject.StartTime != "" && subject.EndTime != "" &&
		minutesOfDay(subject.EndTime) > minutesOfDay(subject.StartTime)
}

// groupKey is the (batch, semester) constraint boundary: no two subjects
// sharing a group key may overlap on the same date.
func groupKey(subject models.Subject) string {
	return strings.ToUpper(strings.TrimSpace(subject.Batch)) + "::" + strings.ToUpper(strings.TrimSpace(subject.Semester))
}

// reservationKey uniquely identifies a claimed slot within a group.
func reservationKey(sessionID, group string, slot models.Slot) string {
	return fmt.Sprintf("%s::%s::%s::%s-%s", sessionID, group, slot.ExamDate, slot.StartTime, slot.EndTime)
}

// combineDateTime builds an absolute timestamp from an ISO date and HH:MM
// clock string, in UTC.
func combineDateTime(date, hhmm string) time.Time {
	t, err := time.Parse(dateLayout+" 15:04", date+" "+hhmm)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
