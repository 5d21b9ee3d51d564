package attendance

import (
	"testing"
	"time"

	"timesheet-bot/internal/models"
)

func TestNewPeriodWindow(t *testing.T) {
	tests := []struct {
		key   string
		start string
		end   string
		label string
	}{
		{"2024-2", "2024-01-16", "2024-02-15", "Period February 2024"},
		{"2024-1", "2023-12-16", "2024-01-15", "Period January 2024"},
		{"2023-12", "2023-11-16", "2023-12-15", "Period December 2023"},
	}

	for _, tt := range tests {
		p, err := ParsePeriodKey(tt.key)
		if err != nil {
			t.Fatalf("ParsePeriodKey(%q): %v", tt.key, err)
		}
		if p.Key != tt.key {
			t.Fatalf("expected key %s, got %s", tt.key, p.Key)
		}
		if got := p.Start.Format(models.DateLayout); got != tt.start {
			t.Fatalf("%s: expected start %s, got %s", tt.key, tt.start, got)
		}
		if got := p.End.Format(models.DateLayout); got != tt.end {
			t.Fatalf("%s: expected end %s, got %s", tt.key, tt.end, got)
		}
		if p.Label != tt.label {
			t.Fatalf("%s: expected label %q, got %q", tt.key, tt.label, p.Label)
		}
	}
}

func TestParsePeriodKeyInvalid(t *testing.T) {
	for _, key := range []string{"", "2024", "2024-13", "x-1", "2024-0"} {
		if _, err := ParsePeriodKey(key); err == nil {
			t.Fatalf("expected error for %q", key)
		}
	}
}

func TestEnumeratePeriodsEmpty(t *testing.T) {
	if got := EnumeratePeriods(nil); len(got) != 0 {
		t.Fatalf("expected no periods, got %d", len(got))
	}
}

func TestEnumeratePeriodsSpan(t *testing.T) {
	rows := []models.SubmissionRow{
		row(t, "1", "A", "2024-03-20", "8", "Riego"),
		row(t, "2", "B", "2024-01-05", "8", "Poda"),
	}

	periods := EnumeratePeriods(rows)

	want := []string{"2024-5", "2024-4", "2024-3", "2024-2", "2024-1"}
	if len(periods) != len(want) {
		t.Fatalf("expected %d periods, got %d", len(want), len(periods))
	}
	for i, key := range want {
		if periods[i].Key != key {
			t.Fatalf("period %d: expected %s, got %s", i, key, periods[i].Key)
		}
	}
}

func TestEnumeratePeriodsOrdersAcrossYears(t *testing.T) {
	rows := []models.SubmissionRow{
		row(t, "1", "A", "2023-09-01", "8", "Riego"),
		row(t, "2", "A", "2023-11-20", "8", "Riego"),
	}

	periods := EnumeratePeriods(rows)

	if periods[0].Key != "2024-1" {
		t.Fatalf("expected newest period 2024-1 first, got %s", periods[0].Key)
	}
	if periods[len(periods)-1].Key != "2023-9" {
		t.Fatalf("expected oldest period 2023-9 last, got %s", periods[len(periods)-1].Key)
	}
	for i := 1; i < len(periods); i++ {
		if !periods[i].Before(periods[i-1]) {
			t.Fatalf("periods not descending at %d: %s then %s", i, periods[i-1].Key, periods[i].Key)
		}
	}
}

func TestPeriodFor(t *testing.T) {
	if got := PeriodFor(day(t, "2024-02-10")).Key; got != "2024-2" {
		t.Fatalf("expected 2024-2, got %s", got)
	}
	if got := PeriodFor(day(t, "2024-02-16")).Key; got != "2024-3" {
		t.Fatalf("expected 2024-3, got %s", got)
	}
	if got := PeriodFor(day(t, "2024-12-20")).Key; got != "2025-1" {
		t.Fatalf("expected 2025-1, got %s", got)
	}
}

func TestSelectPeriod(t *testing.T) {
	periods := []models.Period{
		models.NewPeriod(2024, time.March),
		models.NewPeriod(2024, time.February),
	}

	p, ok := SelectPeriod(periods, "2024-2")
	if !ok || p.Key != "2024-2" {
		t.Fatalf("expected remembered period, got %s", p.Key)
	}

	p, ok = SelectPeriod(periods, "2020-1")
	if !ok || p.Key != "2024-3" {
		t.Fatalf("expected most recent period, got %s", p.Key)
	}

	if _, ok := SelectPeriod(nil, ""); ok {
		t.Fatal("expected no selection without periods")
	}
}
