package attendance

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"timesheet-bot/internal/models"
)

type CellKind string

const (
	KindEmpty           CellKind = "empty"
	KindAbsence         CellKind = "absence"
	KindHoliday         CellKind = "holiday"
	KindVacation        CellKind = "vacation"
	KindAuthorizedLeave CellKind = "authorized_leave"
	KindHours           CellKind = "hours"
)

// Cell texts for the reserved task categories.
const (
	LabelAbsence         = "FALTA"
	LabelHoliday         = "FERIADO"
	LabelVacation        = "V"
	LabelAuthorizedLeave = "CM"
)

const (
	DuplicateMarker = "("
	ExcessMarker    = "!"
)

var (
	fridayLimit  = decimal.NewFromInt(8)
	weekdayLimit = decimal.NewFromInt(9)
)

// ClassificationRule maps a task predicate to a fixed cell label.
type ClassificationRule struct {
	Kind  CellKind
	Label string
	Match func(task string) bool
}

// DefaultRules is evaluated top to bottom; the first match wins, so the
// exact "falta" check shadows the substring rules below it.
var DefaultRules = []ClassificationRule{
	{Kind: KindAbsence, Label: LabelAbsence, Match: taskEquals(models.TaskAbsence)},
	{Kind: KindHoliday, Label: LabelHoliday, Match: taskContains(models.TaskHoliday, models.TaskMedicalNote)},
	{Kind: KindVacation, Label: LabelVacation, Match: taskContains(models.TaskVacation)},
	{Kind: KindAuthorizedLeave, Label: LabelAuthorizedLeave, Match: taskContains(models.TaskAuthorizedLeave)},
}

func taskEquals(value string) func(string) bool {
	return func(task string) bool {
		return strings.EqualFold(strings.TrimSpace(task), value)
	}
}

func taskContains(values ...string) func(string) bool {
	return func(task string) bool {
		lower := strings.ToLower(task)
		for _, v := range values {
			if strings.Contains(lower, v) {
				return true
			}
		}
		return false
	}
}

// Aggregate is what the matrix knows about one employee/day.
type Aggregate struct {
	Hours     decimal.Decimal
	Overtime  decimal.Decimal
	Count     int
	FirstTask string
}

// Add folds a row in. The first row added fixes FirstTask.
func (a *Aggregate) Add(row models.SubmissionRow) {
	if a.Count == 0 {
		a.FirstTask = row.Task
	}
	a.Hours = a.Hours.Add(row.Hours)
	a.Overtime = a.Overtime.Add(row.OvertimeHours)
	a.Count++
}

func (a Aggregate) Total() decimal.Decimal {
	return a.Hours.Add(a.Overtime)
}

// Classify renders the cell text for an aggregate on the given day.
func Classify(rules []ClassificationRule, agg Aggregate, date time.Time) (CellKind, string) {
	if agg.Count == 0 {
		return KindEmpty, ""
	}

	for _, rule := range rules {
		if rule.Match(agg.FirstTask) {
			return rule.Kind, rule.Label
		}
	}

	var b strings.Builder
	b.WriteString(FormatHours(agg.Hours))
	if agg.Overtime.IsPositive() {
		b.WriteString(" + ")
		b.WriteString(FormatHours(agg.Overtime))
	}
	if agg.Count > 1 {
		b.WriteString(DuplicateMarker)
		b.WriteString(strconv.Itoa(agg.Count))
		b.WriteString(")")
	}
	if ExceedsDailyLimit(date, agg.Total()) {
		b.WriteString(ExcessMarker)
	}

	return KindHours, b.String()
}

// ExceedsDailyLimit applies 8h on Fridays and 9h on any other day.
func ExceedsDailyLimit(date time.Time, total decimal.Decimal) bool {
	if date.Weekday() == time.Friday {
		return total.GreaterThan(fridayLimit)
	}
	return total.GreaterThan(weekdayLimit)
}

// FormatHours prints whole hours bare and anything else with one decimal,
// rounding half to even.
func FormatHours(h decimal.Decimal) string {
	if h.IsInteger() {
		return h.StringFixed(0)
	}
	return h.StringFixedBank(1)
}
