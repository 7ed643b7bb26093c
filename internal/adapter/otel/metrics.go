package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "codeassist"

// Metrics holds all CodeAssist metric instruments.
type Metrics struct {
	TasksSubmitted  metric.Int64Counter
	TasksCompleted  metric.Int64Counter
	TasksFailed     metric.Int64Counter
	TaskDuration    metric.Float64Histogram
	ToolInvocations metric.Int64Counter
	StageDuration   metric.Float64Histogram
	CompletionCalls metric.Int64Counter
	CacheHits       metric.Int64Counter

	meter metric.Meter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFrom(otel.Meter(meterName))
}

// NewMetricsFrom creates all metric instruments on the given meter.
func NewMetricsFrom(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}
	var err error

	m.TasksSubmitted, err = meter.Int64Counter("codeassist.tasks.submitted",
		metric.WithDescription("Number of tasks submitted"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("codeassist.tasks.completed",
		metric.WithDescription("Number of tasks completed"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("codeassist.tasks.failed",
		metric.WithDescription("Number of tasks failed"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("codeassist.task.duration_seconds",
		metric.WithDescription("Task duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.ToolInvocations, err = meter.Int64Counter("codeassist.tool.invocations",
		metric.WithDescription("Number of tool invocations"))
	if err != nil {
		return nil, err
	}

	m.StageDuration, err = meter.Float64Histogram("codeassist.pipeline.stage.duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.CompletionCalls, err = meter.Int64Counter("codeassist.completion.calls",
		metric.WithDescription("Number of completion requests sent to the model backend"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("codeassist.completion.cache_hits",
		metric.WithDescription("Number of completions served from cache"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveLogDrops exports dropped(), the running count of log records lost
// to a full async log buffer, on every metric collection.
func (m *Metrics) ObserveLogDrops(dropped func() int64) error {
	_, err := m.meter.Int64ObservableCounter("codeassist.log.records_dropped",
		metric.WithDescription("Log records dropped because the async log buffer was full"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(dropped())
			return nil
		}))
	return err
}
