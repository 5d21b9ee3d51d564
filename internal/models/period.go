package models

import (
	"fmt"
	"time"
)

// Period is a pay period running from the 16th of the previous month
// through the 15th of Month.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
}

func NewPeriod(year int, month time.Month) Period {
	end := time.Date(year, month, 15, 0, 0, 0, 0, time.UTC)
	start := time.Date(year, month-1, 16, 0, 0, 0, 0, time.UTC)

	return Period{
		Year:  end.Year(),
		Month: end.Month(),
		Key:   fmt.Sprintf("%d-%d", end.Year(), int(end.Month())),
		Label: fmt.Sprintf("Period %s %d", end.Month(), end.Year()),
		Start: start,
		End:   end,
	}
}

// Contains reports whether date falls inside the window, inclusive.
func (p Period) Contains(date time.Time) bool {
	d := Day(date)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days lists every calendar day of the window in order.
func (p Period) Days() []time.Time {
	var days []time.Time
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Before orders periods chronologically.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}
