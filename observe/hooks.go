package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/fastuator/health"
)

// SpanPrefix prefixes the span name of every health check.
const SpanPrefix = "health.check."

// Span and metric attribute keys for health checks.
const (
	AttrCheckName   = "check"
	AttrCheckStatus = "status"
	AttrCheckError  = "health.check.error"
)

// CheckHook instruments health checks with a span, a duration histogram and a
// warn log for every DOWN result. It implements health.Hook.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: instrumentation never fails a check.
type CheckHook struct {
	tracer       trace.Tracer
	durationHist metric.Float64Histogram
	logger       Logger
}

var _ health.Hook = (*CheckHook)(nil)

// NewCheckHook creates a hook. A nil tracer or logger disables that signal.
func NewCheckHook(tracer trace.Tracer, meter metric.Meter, logger Logger) (*CheckHook, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer("noop")
	}
	if logger == nil {
		logger = NopLogger()
	}

	durationHist, err := meter.Float64Histogram(
		MetricCheckDuration,
		metric.WithDescription("Health check duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &CheckHook{tracer: tracer, durationHist: durationHist, logger: logger}, nil
}

// CheckHookFromObserver creates a CheckHook from an Observer.
func CheckHookFromObserver(obs Observer) (*CheckHook, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return NewCheckHook(obs.Tracer(), obs.Meter(), obs.Logger())
}

// CheckStarted starts the check span.
func (h *CheckHook) CheckStarted(ctx context.Context, name string) context.Context {
	ctx, _ = h.tracer.Start(ctx, SpanPrefix+name,
		trace.WithAttributes(attribute.String(AttrCheckName, name)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx
}

// CheckFinished ends the span, records the duration and logs failures.
func (h *CheckHook) CheckFinished(ctx context.Context, name string, result health.Result) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String(AttrCheckStatus, result.Status.String()),
		attribute.Bool(AttrCheckError, result.IsFailure()),
	)
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	h.durationHist.Record(ctx, result.Duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrCheckName, name),
		attribute.String(AttrCheckStatus, result.Status.String()),
	))

	if result.Status != health.StatusUp {
		fields := []Field{
			{Key: "check", Value: name},
			{Key: "duration_ms", Value: float64(result.Duration.Milliseconds())},
		}
		if result.Err != nil {
			fields = append(fields, Field{Key: "error", Value: result.Err.Error()})
		}
		h.logger.Warn(ctx, "health check down", fields...)
	}
}
