package otel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Strob0t/CodeAssist/internal/domain/pipeline"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestPipelineObserverSpans(t *testing.T) {
	sr := installRecorder(t)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetricsFrom(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsFrom: %v", err)
	}

	r := pipeline.Runner{Observer: PipelineObserver(m)}
	stages := []pipeline.Stage{
		{Name: "ok", Transform: func(_ context.Context, s string) (string, error) { return s, nil }},
		{Name: "bad", Transform: func(context.Context, string) (string, error) { return "", errors.New("boom") }},
	}
	if _, err := r.Run(context.Background(), stages, "x"); err == nil {
		t.Fatal("expected error")
	}

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("first stage span should not be an error")
	}
	if spans[1].Status().Code != codes.Error {
		t.Error("second stage span should be an error")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name == "codeassist.pipeline.stage.duration_seconds" {
				found = true
			}
		}
	}
	if !found {
		t.Error("stage duration histogram not recorded")
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	sr := installRecorder(t)
	_, span := StartToolSpan(context.Background(), "code_reviewer")
	EndSpan(span, errors.New("fail"))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name() != "tool" || spans[0].Status().Code != codes.Error {
		t.Errorf("unexpected span %s status %v", spans[0].Name(), spans[0].Status())
	}
}

func TestHTTPMiddlewareSkipsHealth(t *testing.T) {
	sr := installRecorder(t)
	h := HTTPMiddleware("test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/agent"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name() != "GET /agent" {
		t.Errorf("span name = %s", spans[0].Name())
	}
}

func TestObserveLogDrops(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetricsFrom(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetricsFrom: %v", err)
	}

	var dropped int64 = 7
	if err := m.ObserveLogDrops(func() int64 { return dropped }); err != nil {
		t.Fatalf("ObserveLogDrops: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "codeassist.log.records_dropped" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) != 1 {
				t.Fatalf("unexpected data %T %+v", md.Data, md.Data)
			}
			if got := sum.DataPoints[0].Value; got != 7 {
				t.Errorf("dropped = %d, want 7", got)
			}
			return
		}
	}
	t.Error("log drop counter not exported")
}
