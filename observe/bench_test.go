package observe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/fastuator/health"
)

func BenchmarkLogger_Info(b *testing.B) {
	logger := NewLoggerWithWriter("info", "json", io.Discard)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "probe", Field{Key: "check", Value: "db"}, Field{Key: "duration_ms", Value: 1.5})
	}
}

func BenchmarkLogger_InfoRedacted(b *testing.B) {
	logger := NewLoggerWithWriter("info", "json", io.Discard)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info(ctx, "auth", Field{Key: "token", Value: "abc"})
	}
}

func BenchmarkLogger_Filtered(b *testing.B) {
	logger := NewLoggerWithWriter("warn", "json", io.Discard)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Debug(ctx, "dropped")
	}
}

func BenchmarkHTTPMetrics_RecordRequest(b *testing.B) {
	m, err := NewHTTPMetrics(noop.NewMeterProvider().Meter("bench"))
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordRequest(ctx, "GET", "/hello", 200, time.Millisecond)
	}
}

func BenchmarkHTTPMetrics_Middleware(b *testing.B) {
	m, err := NewHTTPMetrics(noop.NewMeterProvider().Meter("bench"))
	if err != nil {
		b.Fatal(err)
	}
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/hello", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkCheckHook(b *testing.B) {
	hook, err := NewCheckHook(tracenoop.NewTracerProvider().Tracer("bench"), noop.NewMeterProvider().Meter("bench"), nil)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	down := health.Failed(errors.New("down"))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := hook.CheckStarted(ctx, "db")
		hook.CheckFinished(c, "db", down)
	}
}

func BenchmarkConfig_Validate(b *testing.B) {
	cfg := Config{
		ServiceName: "bench",
		Tracing:     TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 0.5},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
		Logging:     LoggingConfig{Enabled: true, Level: "info", Format: "json"},
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}
