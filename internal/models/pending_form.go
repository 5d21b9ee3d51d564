package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type FormMode string

const (
	FormCreate       FormMode = "create"
	FormEdit         FormMode = "edit"
	FormDisambiguate FormMode = "disambiguate"
)

// SubmissionValues are the fields a user enters for one timesheet entry.
// Hours is nullable so an untouched field can be told apart from zero.
type SubmissionValues struct {
	Date          time.Time           `json:"date"`
	CostCenter    string              `json:"cost_center"`
	Task          string              `json:"task"`
	Note          string              `json:"note"`
	Hours         decimal.NullDecimal `json:"hours"`
	OvertimeHours decimal.Decimal     `json:"overtime_hours"`
	OnCall        bool                `json:"on_call"`
}

// ValuesFromRow pre-populates form values from an existing entry.
func ValuesFromRow(row SubmissionRow) SubmissionValues {
	return SubmissionValues{
		Date:          row.Date,
		CostCenter:    row.CostCenter,
		Task:          row.Task,
		Note:          row.Note,
		Hours:         decimal.NewNullDecimal(row.Hours),
		OvertimeHours: row.OvertimeHours,
		OnCall:        row.OnCall,
	}
}

// PendingForm is the in-memory editing context of one matrix cell.
type PendingForm struct {
	Mode            FormMode         `json:"mode"`
	Employee        string           `json:"employee"`
	Date            time.Time        `json:"date"`
	PriorID         string           `json:"prior_id,omitempty"`
	PriorInstanceID string           `json:"prior_instance_id,omitempty"`
	Values          SubmissionValues `json:"values"`
	Candidates      []SubmissionRow  `json:"candidates,omitempty"`
}

func (f PendingForm) IsEdit() bool {
	return f.Mode == FormEdit && f.PriorID != ""
}
