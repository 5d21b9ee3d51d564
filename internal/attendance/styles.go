package attendance

import (
	"strings"
	"time"
)

type PredicateOp string

const (
	OpAlways   PredicateOp = "always"
	OpEquals   PredicateOp = "equals"
	OpContains PredicateOp = "contains"
)

// CellPredicate tests the rendered text of a cell.
type CellPredicate struct {
	Op    PredicateOp `json:"op"`
	Value string      `json:"value,omitempty"`
}

func (p CellPredicate) Matches(text string) bool {
	switch p.Op {
	case OpAlways:
		return true
	case OpEquals:
		return text == p.Value
	case OpContains:
		return strings.Contains(text, p.Value)
	}
	return false
}

// CellStyle is a renderer-neutral colour pair, as #RRGGBB.
type CellStyle struct {
	Name       string `json:"name"`
	Background string `json:"background"`
	Foreground string `json:"foreground"`
	Bold       bool   `json:"bold,omitempty"`
}

// CellStyleRule applies Style to cells of Column whose text satisfies
// Predicate. Rules of one column are ordered; the first match wins.
type CellStyleRule struct {
	Column    string        `json:"column"`
	Predicate CellPredicate `json:"predicate"`
	Style     CellStyle     `json:"style"`
}

var (
	StyleEmpty           = CellStyle{Name: "empty", Background: "#FFFFFF", Foreground: "#000000"}
	StyleWeekend         = CellStyle{Name: "weekend", Background: "#D9D9D9", Foreground: "#000000"}
	StyleAbsence         = CellStyle{Name: "absence", Background: "#FF4D4D", Foreground: "#FFFFFF", Bold: true}
	StyleHoliday         = CellStyle{Name: "holiday", Background: "#5B9BD5", Foreground: "#FFFFFF", Bold: true}
	StyleVacation        = CellStyle{Name: "vacation", Background: "#70AD47", Foreground: "#FFFFFF", Bold: true}
	StyleAuthorizedLeave = CellStyle{Name: "authorized_leave", Background: "#B4A7D6", Foreground: "#000000", Bold: true}
	StyleDuplicate       = CellStyle{Name: "duplicate", Background: "#F4B183", Foreground: "#000000", Bold: true}
	StyleExcess          = CellStyle{Name: "excess", Background: "#FFE699", Foreground: "#000000", Bold: true}
	StyleNormal          = CellStyle{Name: "normal", Background: "#E2EFDA", Foreground: "#000000"}
)

// StyleRules emits one rule per date column per condition.
func StyleRules(dates []time.Time) []CellStyleRule {
	rules := make([]CellStyleRule, 0, len(dates)*8)
	for _, date := range dates {
		column := Column(date)

		empty := StyleEmpty
		if isWeekend(date) {
			empty = StyleWeekend
		}

		rules = append(rules,
			CellStyleRule{Column: column, Predicate: CellPredicate{Op: OpEquals, Value: ""}, Style: empty},
			CellStyleRule{Column: column, Predicate: CellPredicate{Op: OpEquals, Value: LabelAbsence}, Style: StyleAbsence},
			CellStyleRule{Column: column, Predicate: CellPredicate{Op: OpEquals, Value: LabelHoliday}, Style: StyleHoliday},
			CellStyleRule{Column: column, Predicate: CellPredicate{Op: OpEquals, Value: LabelVacation}, Style: StyleVacation},
			CellStyleRule{Column: column, Predicate: CellPredicate{Op: OpEquals, Value: LabelAuthorizedLeave}, Style: StyleAuthorizedLeave},
			CellStyleRule{Column: column, Predicate: CellPredicate{Op: OpContains, Value: DuplicateMarker}, Style: StyleDuplicate},
			CellStyleRule{Column: column, Predicate: CellPredicate{Op: OpContains, Value: ExcessMarker}, Style: StyleExcess},
			CellStyleRule{Column: column, Predicate: CellPredicate{Op: OpAlways}, Style: StyleNormal},
		)
	}
	return rules
}

// ResolveStyle returns the first rule of column matching text.
func ResolveStyle(rules []CellStyleRule, column, text string) (CellStyle, bool) {
	for _, rule := range rules {
		if rule.Column == column && rule.Predicate.Matches(text) {
			return rule.Style, true
		}
	}
	return CellStyle{}, false
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
