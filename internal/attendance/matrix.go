package attendance

import (
	"fmt"
	"sort"
	"time"

	"timesheet-bot/internal/models"
)

// Matrix is the employee x day table for one period.
type Matrix struct {
	Title     string        `json:"title"`
	Period    models.Period `json:"period"`
	Dates     []time.Time   `json:"dates"`
	Employees []string      `json:"employees"`
	Rows      []MatrixRow   `json:"rows"`
}

type MatrixRow struct {
	Employee string `json:"employee"`
	Cells    []Cell `json:"cells"`
}

// Cell is derived on every build and never stored.
type Cell struct {
	Date  time.Time `json:"date"`
	Kind  CellKind  `json:"kind"`
	Text  string    `json:"text"`
	Count int       `json:"count"`
}

// Column is the key style rules use to address a date column.
func Column(date time.Time) string {
	return date.Format(models.DateLayout)
}

func (m *Matrix) IsEmpty() bool {
	return len(m.Rows) == 0
}

// Cell returns the cell of employee on date, if present in the table.
func (m *Matrix) Cell(employee string, date time.Time) (Cell, bool) {
	for _, row := range m.Rows {
		if row.Employee != employee {
			continue
		}
		for _, c := range row.Cells {
			if models.SameDay(c.Date, date) {
				return c, true
			}
		}
	}
	return Cell{}, false
}

func MatrixTitle(period models.Period) string {
	return fmt.Sprintf("Hours per employee: %s (%s to %s)",
		period.Label,
		period.Start.Format(models.DateLayout),
		period.End.Format(models.DateLayout))
}

type cellKey struct {
	employee string
	day      string
}

// BuildMatrix aggregates rows into the period's matrix. Rows are consumed in
// the given order, which decides which task classifies a duplicated cell.
func BuildMatrix(rows []models.SubmissionRow, period models.Period) (*Matrix, []CellStyleRule, string) {
	return BuildMatrixWithRules(rows, period, DefaultRules)
}

func BuildMatrixWithRules(rows []models.SubmissionRow, period models.Period, rules []ClassificationRule) (*Matrix, []CellStyleRule, string) {
	title := MatrixTitle(period)
	dates := period.Days()

	matrix := &Matrix{
		Title:  title,
		Period: period,
		Dates:  dates,
	}

	aggregates := make(map[cellKey]*Aggregate)
	seen := make(map[string]struct{})

	for _, row := range rows {
		if row.Employee == "" || !period.Contains(row.Date) {
			continue
		}
		if _, ok := seen[row.Employee]; !ok {
			seen[row.Employee] = struct{}{}
			matrix.Employees = append(matrix.Employees, row.Employee)
		}

		key := cellKey{employee: row.Employee, day: Column(row.Date)}
		agg, ok := aggregates[key]
		if !ok {
			agg = &Aggregate{}
			aggregates[key] = agg
		}
		agg.Add(row)
	}

	if len(matrix.Employees) == 0 {
		return matrix, nil, title
	}

	sort.Strings(matrix.Employees)

	for _, employee := range matrix.Employees {
		mrow := MatrixRow{Employee: employee, Cells: make([]Cell, 0, len(dates))}
		for _, date := range dates {
			var agg Aggregate
			if a, ok := aggregates[cellKey{employee: employee, day: Column(date)}]; ok {
				agg = *a
			}
			kind, text := Classify(rules, agg, date)
			mrow.Cells = append(mrow.Cells, Cell{
				Date:  date,
				Kind:  kind,
				Text:  text,
				Count: agg.Count,
			})
		}
		matrix.Rows = append(matrix.Rows, mrow)
	}

	return matrix, StyleRules(dates), title
}
