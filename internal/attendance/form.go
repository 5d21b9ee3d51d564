package attendance

import (
	"time"

	"github.com/shopspring/decimal"

	"timesheet-bot/internal/models"
)

// MatchingRows returns the rows of one cell in input order.
func MatchingRows(rows []models.SubmissionRow, employee string, date time.Time) []models.SubmissionRow {
	var matches []models.SubmissionRow
	for _, row := range rows {
		if row.Matches(employee, date) {
			matches = append(matches, row)
		}
	}
	return matches
}

// ActivateCell decides what a click on a cell opens: an empty create form,
// an edit form bound to the single backing row, or the disambiguation list
// when more than one row backs the cell.
func ActivateCell(rows []models.SubmissionRow, employee string, date time.Time) models.PendingForm {
	day := models.Day(date)
	matches := MatchingRows(rows, employee, day)

	switch len(matches) {
	case 0:
		return models.PendingForm{
			Mode:     models.FormCreate,
			Employee: employee,
			Date:     day,
			Values: models.SubmissionValues{
				Date:          day,
				OvertimeHours: decimal.Zero,
			},
		}
	case 1:
		row := matches[0]
		return models.PendingForm{
			Mode:            models.FormEdit,
			Employee:        employee,
			Date:            day,
			PriorID:         row.ID,
			PriorInstanceID: row.SupersedesID(),
			Values:          models.ValuesFromRow(row),
		}
	default:
		return models.PendingForm{
			Mode:       models.FormDisambiguate,
			Employee:   employee,
			Date:       day,
			Candidates: matches,
		}
	}
}
