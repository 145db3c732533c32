package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names. The Prometheus exporter appends _total to counters and
// the unit suffix to histograms.
const (
	MetricHTTPRequests        = "http_requests"
	MetricHTTPRequestDuration = "http_request_duration"
	MetricHealthStatus        = "app_health_status"
	MetricCheckDuration       = "health_check_duration"
)

// Attribute keys recorded on HTTP request metrics.
const (
	AttrMethod   = "method"
	AttrEndpoint = "endpoint"
	AttrStatus   = "status"
)

// HTTPMetrics records request metrics and the aggregate health gauge.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: recording never fails and never panics.
type HTTPMetrics struct {
	requests     metric.Int64Counter
	durationHist metric.Float64Histogram
	healthStatus metric.Int64Gauge
	route        RouteFunc
}

// NewHTTPMetrics creates the request instruments on meter.
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}

	requests, err := meter.Int64Counter(
		MetricHTTPRequests,
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		MetricHTTPRequestDuration,
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	healthStatus, err := meter.Int64Gauge(
		MetricHealthStatus,
		metric.WithDescription("Aggregate health status (1 = UP, 0 = DOWN)"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		requests:     requests,
		durationHist: durationHist,
		healthStatus: healthStatus,
		route:        ServeMuxRoute,
	}, nil
}

// RecordRequest records one finished request.
func (m *HTTPMetrics) RecordRequest(ctx context.Context, method, endpoint string, status int, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String(AttrMethod, method),
		attribute.String(AttrEndpoint, endpoint),
		attribute.String(AttrStatus, strconv.Itoa(status)),
	)
	m.requests.Add(ctx, 1, opt)
	m.durationHist.Record(ctx, duration.Seconds(), opt)
}

// SetHealthStatus publishes the latest aggregate verdict.
func (m *HTTPMetrics) SetHealthStatus(ctx context.Context, up bool) {
	var v int64
	if up {
		v = 1
	}
	m.healthStatus.Record(ctx, v)
}
