package intake

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompts are the questions the assistant asks at each stage. The
// placeholder {project_type} is replaced with the visitor's project.
type Prompts struct {
	Budget   string `yaml:"budget"`
	Timeline string `yaml:"timeline"`
	Contact  string `yaml:"contact"`
	Done     string `yaml:"done"`
}

func DefaultPrompts() Prompts {
	return Prompts{
		Budget:   "Thanks! What budget range do you have in mind for your {project_type}? (LOW, MID or HIGH)",
		Timeline: "Got it. When would you like to get started? (ASAP, SOON, LATER or just EXPLORING)",
		Contact:  "Great. What name and email should the contractor use to reach you? A phone number and ZIP code help too.",
		Done:     "Thanks! Your {project_type} request has been sent. A contractor will be in touch shortly.",
	}
}

// LoadPrompts reads a YAML file and overlays its non-empty entries on the
// defaults. An empty path returns the defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read prompts file: %w", err)
	}

	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return p, fmt.Errorf("parse prompts file %s: %w", path, err)
	}

	if override.Budget != "" {
		p.Budget = override.Budget
	}
	if override.Timeline != "" {
		p.Timeline = override.Timeline
	}
	if override.Contact != "" {
		p.Contact = override.Contact
	}
	if override.Done != "" {
		p.Done = override.Done
	}
	return p, nil
}

func (p Prompts) forStage(stage Stage, projectType string) string {
	var tmpl string
	switch stage {
	case StageAwaitingBudget:
		tmpl = p.Budget
	case StageAwaitingTimeline:
		tmpl = p.Timeline
	case StageAwaitingContact:
		tmpl = p.Contact
	case StageComplete:
		tmpl = p.Done
	}
	return strings.ReplaceAll(tmpl, "{project_type}", strings.ToLower(projectType))
}
