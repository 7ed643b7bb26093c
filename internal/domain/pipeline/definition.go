package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

var (
	ErrIDRequired          = errors.New("pipeline id is required")
	ErrInvalidID           = errors.New("pipeline id must match [a-z0-9_]+")
	ErrDescriptionRequired = errors.New("pipeline description is required")
	ErrNoSteps             = errors.New("pipeline must have at least one step")
	ErrStepMissingName     = errors.New("step name is required")
	ErrStepMissingPrompt   = errors.New("step prompt is required")
)

var idPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Completer is the completion capability a stage prompt is sent to.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Definition describes a pipeline tool: its registry metadata and the
// ordered prompts applied to the input. Definitions are loaded from YAML.
type Definition struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Title       string   `json:"title" yaml:"title"`             // report banner, e.g. "CODE REVIEW"
	FinalTitle  string   `json:"final_title" yaml:"final_title"` // e.g. "REVIEWED CODE"
	Builtin     bool     `json:"builtin" yaml:"-"`
	Steps       []Step   `json:"steps" yaml:"steps"`
}

// Step is one prompt in a pipeline definition. Prompt is a text/template
// with the fields .Code (the current artifact) and .Guidelines.
type Step struct {
	Name   string `json:"name" yaml:"name"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// promptData is the template input for a step prompt.
type promptData struct {
	Code       string
	Guidelines string
}

// Validate checks the definition for structural correctness.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return ErrIDRequired
	}
	if !idPattern.MatchString(d.ID) {
		return fmt.Errorf("%q: %w", d.ID, ErrInvalidID)
	}
	if strings.TrimSpace(d.Description) == "" {
		return ErrDescriptionRequired
	}
	if len(d.Steps) == 0 {
		return ErrNoSteps
	}

	for i, s := range d.Steps {
		if s.Name == "" {
			return fmt.Errorf("step %d: %w", i, ErrStepMissingName)
		}
		if strings.TrimSpace(s.Prompt) == "" {
			return fmt.Errorf("step %d: %w", i, ErrStepMissingPrompt)
		}
		if _, err := template.New(s.Name).Parse(s.Prompt); err != nil {
			return fmt.Errorf("step %d: parse prompt: %w", i, err)
		}
	}
	return nil
}

// Stages builds the runnable stages. Each stage renders its prompt with the
// current artifact and returns the completion as the next artifact.
func (d *Definition) Stages(c Completer) ([]Stage, error) {
	stages := make([]Stage, 0, len(d.Steps))
	for i, s := range d.Steps {
		tmpl, err := template.New(s.Name).Parse(s.Prompt)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s step %d: %w", d.ID, i, err)
		}
		stages = append(stages, Stage{
			Name: s.Name,
			Transform: func(ctx context.Context, input string) (string, error) {
				var buf bytes.Buffer
				if err := tmpl.Execute(&buf, promptData{Code: input, Guidelines: MarkdownGuidelines}); err != nil {
					return "", fmt.Errorf("render prompt: %w", err)
				}
				return c.Complete(ctx, buf.String())
			},
		})
	}
	return stages, nil
}

// Format renders a report as the markdown document returned to callers.
func (d *Definition) Format(rep *Report) string {
	title := d.Title
	if title == "" {
		title = strings.ToUpper(strings.ReplaceAll(d.ID, "_", " "))
	}
	final := d.FinalTitle
	if final == "" {
		final = "OUTPUT"
	}

	parts := make([]string, 0, len(rep.Steps)+3)
	parts = append(parts, fmt.Sprintf("## === %s REPORT ===\n", title))
	for _, s := range rep.Steps {
		parts = append(parts, fmt.Sprintf("## --- %s ---\n%s\n", s.Stage, s.Output))
	}
	parts = append(parts, fmt.Sprintf("## === FINAL %s ===\n", final), rep.FinalOutput)
	return strings.Join(parts, "\n")
}
