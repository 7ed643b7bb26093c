package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/CodeAssist/internal/adapter/otel"
	"github.com/Strob0t/CodeAssist/internal/domain/pipeline"
	"github.com/Strob0t/CodeAssist/internal/domain/tool"
	"github.com/Strob0t/CodeAssist/internal/logger"
	"github.com/Strob0t/CodeAssist/internal/port/audit"
)

// ToolAdapter wraps a transform (single-shot or pipeline) as a tool.Handler.
// Every successful invocation is written to the audit sink.
type ToolAdapter struct {
	name    string
	run     func(ctx context.Context, input string) (string, error)
	sink    audit.Sink
	metrics *cfotel.Metrics
	now     func() time.Time
}

var _ tool.Handler = (*ToolAdapter)(nil)

// NewSingleShotTool adapts one transform into a tool.
func NewSingleShotTool(name string, transform pipeline.Transform, sink audit.Sink) *ToolAdapter {
	return newToolAdapter(name, transform, sink)
}

// NewPipelineTool adapts an ordered stage list into a tool. The pipeline
// report is rendered with format; a nil format returns the final output.
func NewPipelineTool(name string, runner pipeline.Runner, stages []pipeline.Stage, format func(*pipeline.Report) string, sink audit.Sink) *ToolAdapter {
	return newToolAdapter(name, func(ctx context.Context, input string) (string, error) {
		rep, err := runner.Run(ctx, stages, input)
		if err != nil {
			return "", err
		}
		if format == nil {
			return rep.FinalOutput, nil
		}
		return format(rep), nil
	}, sink)
}

func newToolAdapter(name string, run func(context.Context, string) (string, error), sink audit.Sink) *ToolAdapter {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &ToolAdapter{name: name, run: run, sink: sink, now: time.Now}
}

// SetMetrics enables invocation counters.
func (a *ToolAdapter) SetMetrics(m *cfotel.Metrics) {
	a.metrics = m
}

// Name returns the tool name the adapter audits under.
func (a *ToolAdapter) Name() string { return a.name }

// Invoke runs the transform. Failures are returned wrapped with the tool
// name and are not audited.
func (a *ToolAdapter) Invoke(ctx context.Context, input string) (string, error) {
	ctx, span := cfotel.StartToolSpan(ctx, a.name)

	out, err := a.run(ctx, input)
	a.record(ctx, err)
	cfotel.EndSpan(span, err)
	if err != nil {
		slog.WarnContext(ctx, "tool invocation failed", "tool", a.name, "error", err)
		return "", fmt.Errorf("tool %s: %w", a.name, err)
	}

	writeAudit(ctx, a.sink, a.name, input, out, a.now())
	return out, nil
}

func (a *ToolAdapter) record(ctx context.Context, err error) {
	if a.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	a.metrics.ToolInvocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", a.name),
		attribute.String("status", status),
	))
}

// writeAudit records one invocation. Sink failures are logged and swallowed.
func writeAudit(ctx context.Context, sink audit.Sink, name, input, output string, now time.Time) {
	rec := audit.Record{
		ID:        uuid.NewString(),
		Tool:      name,
		Input:     input,
		Output:    output,
		TaskID:    logger.TaskID(ctx),
		RequestID: logger.RequestID(ctx),
		CreatedAt: now.UTC(),
	}
	if err := sink.Write(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "audit write failed", "tool", name, "error", err)
	}
}
