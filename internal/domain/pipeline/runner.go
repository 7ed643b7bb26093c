// Package pipeline runs ordered text-to-text stages and defines the
// YAML-loadable stage lists that back pipeline tools.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/CodeAssist/internal/domain"
)

// Transform turns the current artifact into the next one.
type Transform func(ctx context.Context, input string) (string, error)

// Stage is one named transformation in a pipeline.
type Stage struct {
	Name      string
	Transform Transform
}

// StepResult is the output of a single stage.
type StepResult struct {
	Stage  string `json:"stage"`
	Output string `json:"output"`
}

// Report is the outcome of a successful pipeline run.
type Report struct {
	Steps       []StepResult `json:"steps"`
	FinalOutput string       `json:"final_output"`
}

// StageError reports which stage aborted a pipeline.
type StageError struct {
	Stage string
	Index int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s): %v", e.Index, e.Stage, e.Err)
}

// Unwrap exposes both the stage-failure sentinel and the underlying cause.
func (e *StageError) Unwrap() []error {
	return []error{domain.ErrStageFailed, e.Err}
}

// Observer is notified around every stage. The returned function is called
// with the stage outcome.
type Observer func(ctx context.Context, stage string, index int) (context.Context, func(err error))

// Runner executes stages strictly in order.
type Runner struct {
	Observer Observer
}

// Run executes stages with a zero-value Runner.
func Run(ctx context.Context, stages []Stage, input string) (*Report, error) {
	return Runner{}.Run(ctx, stages, input)
}

// Run threads input through every stage. Stage i+1 only starts once stage i
// has produced its output. The first failing stage aborts the run and no
// partial report is returned.
func (r Runner) Run(ctx context.Context, stages []Stage, input string) (*Report, error) {
	current := input
	steps := make([]StepResult, 0, len(stages))

	for i, st := range stages {
		out, err := r.runStage(ctx, st, i, current)
		if err != nil {
			slog.Warn("pipeline aborted", "stage", st.Name, "index", i, "error", err)
			return nil, &StageError{Stage: st.Name, Index: i, Err: err}
		}
		steps = append(steps, StepResult{Stage: st.Name, Output: out})
		current = out
	}

	return &Report{Steps: steps, FinalOutput: current}, nil
}

func (r Runner) runStage(ctx context.Context, st Stage, index int, input string) (out string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if st.Transform == nil {
		return "", fmt.Errorf("stage has no transform")
	}

	if r.Observer != nil {
		var done func(error)
		ctx, done = r.Observer(ctx, st.Name, index)
		defer func() { done(err) }()
	}

	slog.Info("pipeline stage", "stage", st.Name, "index", index)
	return st.Transform(ctx, input)
}
