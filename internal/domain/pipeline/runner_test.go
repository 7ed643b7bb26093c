package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/CodeAssist/internal/domain"
	"github.com/Strob0t/CodeAssist/internal/domain/pipeline"
)

func upper(_ context.Context, s string) (string, error) { return strings.ToUpper(s), nil }

func reverse(_ context.Context, s string) (string, error) {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r), nil
}

func TestRunThreadsOutputs(t *testing.T) {
	stages := []pipeline.Stage{
		{Name: "upper", Transform: upper},
		{Name: "reverse", Transform: reverse},
	}

	rep, err := pipeline.Run(context.Background(), stages, "ab")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.FinalOutput != "BA" {
		t.Errorf("FinalOutput = %q, want BA", rep.FinalOutput)
	}
	want := []pipeline.StepResult{{Stage: "upper", Output: "AB"}, {Stage: "reverse", Output: "BA"}}
	if len(rep.Steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(rep.Steps), len(want))
	}
	for i := range want {
		if rep.Steps[i] != want[i] {
			t.Errorf("step %d = %+v, want %+v", i, rep.Steps[i], want[i])
		}
	}
}

func TestRunNoStagesReturnsInput(t *testing.T) {
	rep, err := pipeline.Run(context.Background(), nil, "unchanged")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.FinalOutput != "unchanged" || len(rep.Steps) != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestRunStopsOnFirstFailure(t *testing.T) {
	cause := errors.New("boom")
	thirdCalled := false
	stages := []pipeline.Stage{
		{Name: "one", Transform: upper},
		{Name: "two", Transform: func(context.Context, string) (string, error) { return "", cause }},
		{Name: "three", Transform: func(_ context.Context, s string) (string, error) {
			thirdCalled = true
			return s, nil
		}},
	}

	rep, err := pipeline.Run(context.Background(), stages, "x")
	if rep != nil {
		t.Errorf("expected no partial report, got %+v", rep)
	}
	if thirdCalled {
		t.Error("stage after failure must not run")
	}
	if !errors.Is(err, domain.ErrStageFailed) {
		t.Errorf("expected ErrStageFailed, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected underlying cause, got %v", err)
	}
	var se *pipeline.StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StageError, got %T", err)
	}
	if se.Stage != "two" || se.Index != 1 {
		t.Errorf("StageError = %+v, want stage two index 1", se)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stages := []pipeline.Stage{
		{Name: "cancel", Transform: func(_ context.Context, s string) (string, error) {
			cancel()
			return s, nil
		}},
		{Name: "after", Transform: upper},
	}

	_, err := pipeline.Run(ctx, stages, "x")
	var se *pipeline.StageError
	if !errors.As(err, &se) || se.Stage != "after" {
		t.Fatalf("expected failure at stage after, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunnerObserver(t *testing.T) {
	var started []string
	var outcomes []error
	r := pipeline.Runner{Observer: func(ctx context.Context, stage string, _ int) (context.Context, func(error)) {
		started = append(started, stage)
		return ctx, func(err error) { outcomes = append(outcomes, err) }
	}}

	stages := []pipeline.Stage{{Name: "a", Transform: upper}, {Name: "b", Transform: reverse}}
	if _, err := r.Run(context.Background(), stages, "hi"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Join(started, ",") != "a,b" {
		t.Errorf("started = %v", started)
	}
	if len(outcomes) != 2 || outcomes[0] != nil || outcomes[1] != nil {
		t.Errorf("outcomes = %v", outcomes)
	}
}

func TestRunNilTransform(t *testing.T) {
	_, err := pipeline.Run(context.Background(), []pipeline.Stage{{Name: "empty"}}, "x")
	if !errors.Is(err, domain.ErrStageFailed) {
		t.Fatalf("expected ErrStageFailed, got %v", err)
	}
}
