package kobo

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"timesheet-bot/internal/models"
)

// Submission is a write request for one timesheet entry.
type Submission struct {
	Employee        string
	Values          models.SubmissionValues
	Version         models.FormVersion
	PriorID         string
	PriorInstanceID string
}

func (s Submission) IsEdit() bool {
	return s.PriorID != ""
}

// Validate checks the fields a write cannot go without.
func (s Submission) Validate() error {
	var missing []string
	if s.Values.Date.IsZero() {
		missing = append(missing, FieldDate)
	}
	if strings.TrimSpace(s.Employee) == "" {
		missing = append(missing, FieldEmployee)
	}
	if strings.TrimSpace(s.Values.CostCenter) == "" {
		missing = append(missing, FieldCostCenter)
	}
	if strings.TrimSpace(s.Values.Task) == "" {
		missing = append(missing, FieldTask)
	}
	if !s.Values.Hours.Valid {
		missing = append(missing, FieldHours)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

type documentMeta struct {
	InstanceID   string `xml:"instanceID"`
	DeprecatedID string `xml:"deprecatedID,omitempty"`
}

// Document is the XML instance posted to the form service. The root element
// is named after the form.
type Document struct {
	XMLName    xml.Name
	FormID     string       `xml:"id,attr"`
	Version    string       `xml:"version,attr"`
	Date       string       `xml:"fecha"`
	Employee   string       `xml:"empleado"`
	CostCenter string       `xml:"ceco"`
	Task       string       `xml:"tarea"`
	Note       string       `xml:"nota"`
	Hours      string       `xml:"horas"`
	Overtime   string       `xml:"horas_extra"`
	OnCall     string       `xml:"guardia"`
	Meta       documentMeta `xml:"meta"`
}

// NewInstanceID returns a fresh instance identifier.
func NewInstanceID() string {
	return "uuid:" + uuid.NewString()
}

// BuildDocument stamps the submission with the form version and a new
// instance id. Edits also reference the instance they replace.
func BuildDocument(formID string, s Submission, instanceID string) Document {
	doc := Document{
		XMLName:    xml.Name{Local: formID},
		FormID:     formID,
		Version:    string(s.Version),
		Date:       s.Values.Date.Format(models.DateLayout),
		Employee:   s.Employee,
		CostCenter: s.Values.CostCenter,
		Task:       s.Values.Task,
		Note:       s.Values.Note,
		Hours:      s.Values.Hours.Decimal.String(),
		Overtime:   s.Values.OvertimeHours.String(),
		OnCall:     models.FormatOnCall(s.Values.OnCall),
		Meta:       documentMeta{InstanceID: instanceID},
	}
	if s.IsEdit() {
		doc.Meta.DeprecatedID = s.PriorInstanceID
		if doc.Meta.DeprecatedID == "" {
			doc.Meta.DeprecatedID = s.PriorID
		}
	}
	return doc
}

func (d Document) Marshal() ([]byte, error) {
	body, err := xml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal submission document: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
