package attendance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"timesheet-bot/internal/models"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse(models.DateLayout, value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return d
}

func row(t *testing.T, id, employee, date, hours, task string) models.SubmissionRow {
	t.Helper()
	return models.SubmissionRow{
		ID:            id,
		Employee:      employee,
		Date:          day(t, date),
		Task:          task,
		Hours:         decimal.RequireFromString(hours),
		OvertimeHours: decimal.Zero,
	}
}

func decimalFrom(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}
