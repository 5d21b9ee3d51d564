package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog lists the choices offered when filling a timesheet entry. Tasks
// remain free text on the form; the catalog only drives keyboards.
type Catalog struct {
	Version           int          `yaml:"version" json:"version"`
	CostCenters       []CostCenter `yaml:"cost_centers" json:"cost_centers"`
	Tasks             []string     `yaml:"tasks" json:"tasks"`
	OnCallOptions     []string     `yaml:"on_call_options" json:"on_call_options"`
	NoteRequiredTasks []string     `yaml:"note_required_tasks" json:"note_required_tasks"`
}

type CostCenter struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label" json:"label"`
}

func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if c.Version != 1 {
		return nil, errors.New("catalog: unsupported version")
	}
	if len(c.CostCenters) == 0 {
		return nil, errors.New("catalog: missing cost_centers")
	}
	if len(c.Tasks) == 0 {
		return nil, errors.New("catalog: missing tasks")
	}
	if len(c.OnCallOptions) == 0 {
		c.OnCallOptions = []string{"Si", "No"}
	}
	for i, cc := range c.CostCenters {
		if strings.TrimSpace(cc.Code) == "" {
			return nil, fmt.Errorf("catalog: cost center %d has no code", i)
		}
	}
	return &c, nil
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// CostCenter looks up a cost center by code.
func (c *Catalog) CostCenter(code string) (CostCenter, bool) {
	for _, cc := range c.CostCenters {
		if cc.Code == code {
			return cc, true
		}
	}
	return CostCenter{}, false
}

// NeedsNote reports whether the task asks for an explanatory note.
func (c *Catalog) NeedsNote(task string) bool {
	for _, t := range c.NoteRequiredTasks {
		if strings.EqualFold(strings.TrimSpace(t), strings.TrimSpace(task)) {
			return true
		}
	}
	return false
}
