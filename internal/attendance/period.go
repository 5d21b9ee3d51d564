package attendance

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"timesheet-bot/internal/models"
)

// EnumeratePeriods lists every period from the month of the earliest row
// until the 15th of the month passes the latest row date plus two months.
// The result is sorted newest first.
func EnumeratePeriods(rows []models.SubmissionRow) []models.Period {
	if len(rows) == 0 {
		return nil
	}

	minDate, maxDate := models.Day(rows[0].Date), models.Day(rows[0].Date)
	for _, row := range rows[1:] {
		d := models.Day(row.Date)
		if d.Before(minDate) {
			minDate = d
		}
		if d.After(maxDate) {
			maxDate = d
		}
	}

	limit := maxDate.AddDate(0, 2, 0)
	current := time.Date(minDate.Year(), minDate.Month(), 1, 0, 0, 0, 0, time.UTC)

	var periods []models.Period
	for {
		periods = append(periods, models.NewPeriod(current.Year(), current.Month()))
		current = current.AddDate(0, 1, 0)

		fifteenth := time.Date(current.Year(), current.Month(), 15, 0, 0, 0, 0, time.UTC)
		if fifteenth.After(limit) {
			break
		}
	}

	sort.SliceStable(periods, func(i, j int) bool {
		return periods[j].Before(periods[i])
	})

	return periods
}

// ParsePeriodKey turns "<year>-<month>" back into a period.
func ParsePeriodKey(key string) (models.Period, error) {
	parts := strings.Split(strings.TrimSpace(key), "-")
	if len(parts) != 2 {
		return models.Period{}, fmt.Errorf("invalid period key %q", key)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return models.Period{}, fmt.Errorf("invalid period year %q: %w", parts[0], err)
	}

	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return models.Period{}, fmt.Errorf("invalid period month %q", parts[1])
	}

	return models.NewPeriod(year, time.Month(month)), nil
}

// PeriodFor returns the period whose window contains date.
func PeriodFor(date time.Time) models.Period {
	d := models.Day(date)
	if d.Day() <= 15 {
		return models.NewPeriod(d.Year(), d.Month())
	}
	next := time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return models.NewPeriod(next.Year(), next.Month())
}

// SelectPeriod picks the remembered key when it is still offered,
// otherwise the most recent period.
func SelectPeriod(periods []models.Period, remembered string) (models.Period, bool) {
	if len(periods) == 0 {
		return models.Period{}, false
	}
	for _, p := range periods {
		if p.Key == remembered {
			return p, true
		}
	}
	return periods[0], true
}
