package kobo

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"timesheet-bot/internal/models"
)

// Form field names.
const (
	FieldDate       = "fecha"
	FieldEmployee   = "empleado"
	FieldCostCenter = "ceco"
	FieldTask       = "tarea"
	FieldNote       = "nota"
	FieldHours      = "horas"
	FieldOvertime   = "horas_extra"
	FieldOnCall     = "guardia"

	fieldID         = "_id"
	fieldUUID       = "_uuid"
	fieldInstanceID = "instanceID"
)

// RawRecord is one submission as exported by the service.
type RawRecord map[string]any

// normalize drops group prefixes such as "grupo/fecha" or "meta/instanceID".
// An unprefixed key wins over a prefixed one with the same name; among
// prefixed keys the first in sorted order wins.
func (r RawRecord) normalize() map[string]any {
	out := make(map[string]any, len(r))
	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		i := strings.LastIndex(key, "/")
		if i < 0 {
			continue
		}
		if _, seen := out[key[i+1:]]; !seen {
			out[key[i+1:]] = r[key]
		}
	}
	for key, value := range r {
		if !strings.Contains(key, "/") {
			out[key] = value
		}
	}
	return out
}

// DecodeRows converts records in fetch order. Missing or unparseable
// identity fields fail the whole batch; optional fields fall back to zero.
func DecodeRows(records []RawRecord) ([]models.SubmissionRow, error) {
	rows := make([]models.SubmissionRow, 0, len(records))
	for i, record := range records {
		row, err := DecodeRow(record)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func DecodeRow(record RawRecord) (models.SubmissionRow, error) {
	fields := record.normalize()

	id := stringValue(fields[fieldID])
	if id == "" {
		return models.SubmissionRow{}, fmt.Errorf("%w: missing %s", ErrSchemaMismatch, fieldID)
	}

	employee := strings.TrimSpace(stringValue(fields[FieldEmployee]))
	if _, ok := fields[FieldEmployee]; !ok {
		return models.SubmissionRow{}, fmt.Errorf("%w: missing %s", ErrSchemaMismatch, FieldEmployee)
	}

	rawDate, ok := fields[FieldDate]
	if !ok {
		return models.SubmissionRow{}, fmt.Errorf("%w: missing %s", ErrSchemaMismatch, FieldDate)
	}
	date, err := parseDate(stringValue(rawDate))
	if err != nil {
		return models.SubmissionRow{}, fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, FieldDate, err)
	}

	instanceID := stringValue(fields[fieldInstanceID])
	if instanceID == "" {
		if u := stringValue(fields[fieldUUID]); u != "" {
			instanceID = "uuid:" + u
		}
	}

	return models.SubmissionRow{
		ID:            id,
		InstanceID:    instanceID,
		Employee:      employee,
		Date:          date,
		CostCenter:    strings.TrimSpace(stringValue(fields[FieldCostCenter])),
		Task:          strings.TrimSpace(stringValue(fields[FieldTask])),
		Hours:         decimalValue(fields[FieldHours]),
		OvertimeHours: decimalValue(fields[FieldOvertime]),
		OnCall:        models.ParseOnCall(stringValue(fields[FieldOnCall])),
		Note:          stringValue(fields[FieldNote]),
	}, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) > len(models.DateLayout) {
		value = value[:len(models.DateLayout)]
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return models.Day(t), nil
}

func decimalValue(v any) decimal.Decimal {
	s := strings.TrimSpace(stringValue(v))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
