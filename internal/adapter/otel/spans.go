package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Strob0t/CodeAssist/internal/domain/pipeline"
)

const tracerName = "codeassist"

// StartTaskSpan starts a span for a background task.
func StartTaskSpan(ctx context.Context, taskID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task",
		trace.WithAttributes(attribute.String("task.id", taskID)),
	)
}

// StartToolSpan starts a span for a tool invocation.
func StartToolSpan(ctx context.Context, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tool",
		trace.WithAttributes(attribute.String("tool.name", tool)),
	)
}

// StartCompletionSpan starts a span for a model completion request.
func StartCompletionSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "completion",
		trace.WithAttributes(
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
		),
	)
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// PipelineObserver traces every pipeline stage and records its duration.
// m may be nil.
func PipelineObserver(m *Metrics) pipeline.Observer {
	return func(ctx context.Context, stage string, index int) (context.Context, func(error)) {
		start := time.Now()
		ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.stage",
			trace.WithAttributes(
				attribute.String("stage.name", stage),
				attribute.Int("stage.index", index),
			),
		)
		return ctx, func(err error) {
			if m != nil {
				status := "ok"
				if err != nil {
					status = "error"
				}
				m.StageDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
					attribute.String("stage.name", stage),
					attribute.String("status", status),
				))
			}
			EndSpan(span, err)
		}
	}
}
