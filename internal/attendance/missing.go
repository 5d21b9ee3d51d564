package attendance

import (
	"sort"
	"time"

	"timesheet-bot/internal/models"
)

// ActivityWindowDays is how far back a submission keeps an employee active.
const ActivityWindowDays = 14

// MissingReport lists active employees with nothing logged on Reference.
type MissingReport struct {
	Reference time.Time `json:"reference"`
	Employees []string  `json:"employees"`
}

func (r MissingReport) UpToDate() bool {
	return len(r.Employees) == 0
}

// ReferenceDay is today on weekdays and the previous Friday on weekends.
func ReferenceDay(today time.Time) time.Time {
	d := models.Day(today)
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, -2)
	}
	return d
}

// ComputeMissing returns, sorted, the employees with a row in the last
// ActivityWindowDays days (through today) but none on the reference day.
func ComputeMissing(rows []models.SubmissionRow, today time.Time) []string {
	return BuildMissingReport(rows, today).Employees
}

func BuildMissingReport(rows []models.SubmissionRow, today time.Time) MissingReport {
	day := models.Day(today)
	reference := ReferenceDay(day)
	windowStart := day.AddDate(0, 0, -ActivityWindowDays)

	active := make(map[string]struct{})
	covered := make(map[string]struct{})

	for _, row := range rows {
		if row.Employee == "" {
			continue
		}
		d := models.Day(row.Date)
		if !d.Before(windowStart) && !d.After(day) {
			active[row.Employee] = struct{}{}
		}
		if d.Equal(reference) {
			covered[row.Employee] = struct{}{}
		}
	}

	missing := make([]string, 0, len(active))
	for employee := range active {
		if _, ok := covered[employee]; !ok {
			missing = append(missing, employee)
		}
	}
	sort.Strings(missing)

	return MissingReport{Reference: reference, Employees: missing}
}
