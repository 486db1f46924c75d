package nudge

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/campus-drift/pkg/models"
)

//go:embed templates.yaml
var embeddedTemplates []byte

// Template is a drift the engine can offer.
type Template struct {
	Type                models.DriftType `yaml:"type"`
	Title               string           `yaml:"title"`
	Description         string           `yaml:"description"`
	Location            string           `yaml:"location"`
	Department          string           `yaml:"department"`
	Time                string           `yaml:"time"`
	TimeRequiredMinutes int              `yaml:"time_required_minutes"`
	IsFree              bool             `yaml:"is_free"`
}

// Area returns the campus area a drift points at: the department when set,
// otherwise the location up to its first "—".
func (t Template) Area() string {
	if t.Department != "" {
		return t.Department
	}
	area, _, _ := strings.Cut(t.Location, "—")
	area = strings.TrimSpace(area)
	if area == "" {
		return "this area"
	}
	return area
}

// ParseTemplates decodes a YAML template catalog.
func ParseTemplates(data []byte) ([]Template, error) {
	var templates []Template
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("template catalog is empty")
	}
	for i, t := range templates {
		if !t.Type.IsValid() {
			return nil, fmt.Errorf("template %d (%q): unknown drift type %q", i, t.Title, t.Type)
		}
		if t.Title == "" {
			return nil, fmt.Errorf("template %d: missing title", i)
		}
		if t.TimeRequiredMinutes < 0 {
			return nil, fmt.Errorf("template %d (%q): negative time requirement", i, t.Title)
		}
	}
	return templates, nil
}

// LoadTemplatesFile reads a YAML template catalog from disk.
func LoadTemplatesFile(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return ParseTemplates(data)
}

// DefaultTemplates returns the built-in template catalog.
func DefaultTemplates() []Template {
	templates, err := ParseTemplates(embeddedTemplates)
	if err != nil {
		panic(fmt.Sprintf("embedded drift templates: %v", err))
	}
	return templates
}
