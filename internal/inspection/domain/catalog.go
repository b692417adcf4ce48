package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StepDefinition describes one slot of the capture sequence. The catalogue
// is configuration, not code: deployments can override it with a YAML file.
type StepDefinition struct {
	Type     string `yaml:"type" json:"type"`
	Label    string `yaml:"label" json:"label"`
	Required bool   `yaml:"required" json:"required"`
}

// Catalogue is the ordered list of capture steps for an inspection.
type Catalogue []StepDefinition

// DefaultCatalogue returns the built-in capture sequence: four required
// exterior views plus two optional interior views.
func DefaultCatalogue() Catalogue {
	return Catalogue{
		{Type: "front", Label: "Front view", Required: true},
		{Type: "back", Label: "Rear view", Required: true},
		{Type: "left_side", Label: "Left side", Required: true},
		{Type: "right_side", Label: "Right side", Required: true},
		{Type: "interior", Label: "Interior", Required: false},
		{Type: "dashboard", Label: "Dashboard and odometer", Required: false},
	}
}

// LoadCatalogue reads a step catalogue from a YAML file. An empty path
// returns the default catalogue.
func LoadCatalogue(path string) (Catalogue, error) {
	if path == "" {
		return DefaultCatalogue(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read step catalogue: %w", err)
	}

	var doc struct {
		Steps Catalogue `yaml:"steps"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse step catalogue: %w", err)
	}

	if err := doc.Steps.Validate(); err != nil {
		return nil, err
	}
	return doc.Steps, nil
}

// Validate checks that the catalogue is usable: at least one required step
// and no duplicate step types.
func (c Catalogue) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("step catalogue is empty")
	}

	seen := make(map[string]bool, len(c))
	hasRequired := false
	for i, def := range c {
		if def.Type == "" {
			return fmt.Errorf("step %d has no type", i)
		}
		if def.Label == "" {
			return fmt.Errorf("step %q has no label", def.Type)
		}
		if seen[def.Type] {
			return fmt.Errorf("duplicate step type %q", def.Type)
		}
		seen[def.Type] = true
		if def.Required {
			hasRequired = true
		}
	}
	if !hasRequired {
		return fmt.Errorf("step catalogue has no required steps")
	}
	return nil
}

// NewSteps materializes the catalogue into fresh photo steps for a session.
func (c Catalogue) NewSteps() []*PhotoStep {
	steps := make([]*PhotoStep, 0, len(c))
	for i, def := range c {
		steps = append(steps, &PhotoStep{
			StepType: def.Type,
			Label:    def.Label,
			Required: def.Required,
			Position: i,
		})
	}
	return steps
}
