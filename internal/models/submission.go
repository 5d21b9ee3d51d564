package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Reserved task values with meaning for the attendance matrix.
const (
	TaskAbsence         = "falta"
	TaskHoliday         = "feriado"
	TaskMedicalNote     = "certificado"
	TaskVacation        = "vacaciones"
	TaskAuthorizedLeave = "falta con aviso"
)

const DateLayout = "2006-01-02"

// SubmissionRow is one timesheet entry as fetched from the form service.
// Several rows may share the same employee and date.
type SubmissionRow struct {
	ID            string          `json:"id"`
	InstanceID    string          `json:"instance_id"`
	Employee      string          `json:"employee"`
	Date          time.Time       `json:"date"`
	CostCenter    string          `json:"cost_center"`
	Task          string          `json:"task"`
	Hours         decimal.Decimal `json:"hours"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	OnCall        bool            `json:"on_call"`
	Note          string          `json:"note"`
}

// SupersedesID returns the identifier an edit of this row must reference
// as deprecated. Falls back to the row id when the service did not report
// an instance id.
func (r SubmissionRow) SupersedesID() string {
	if r.InstanceID != "" {
		return r.InstanceID
	}
	return r.ID
}

// Matches reports whether the row belongs to the employee/day cell.
func (r SubmissionRow) Matches(employee string, date time.Time) bool {
	return r.Employee == employee && SameDay(r.Date, date)
}

// FormatOnCall encodes the on-call flag the way the form expects it.
func FormatOnCall(onCall bool) string {
	if onCall {
		return "si"
	}
	return "no"
}

// ParseOnCall accepts the spellings seen in form exports.
func ParseOnCall(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "si", "sí", "yes", "true", "1":
		return true
	}
	return false
}

// FormVersion is the schema version token the service requires on every write.
type FormVersion string

func (v FormVersion) IsZero() bool {
	return strings.TrimSpace(string(v)) == ""
}

// Day truncates t to a calendar day at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay compares calendar days ignoring time and location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
