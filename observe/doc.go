// Package observe provides the telemetry primitives behind fastuator.
//
// An Observer owns a private OpenTelemetry MeterProvider whose Prometheus
// reader feeds the metrics endpoint, an optional push exporter, a
// TracerProvider and a zap backed Logger. Nothing is registered globally, so
// several observers can coexist in one process.
//
// HTTPMetrics records request counts and latencies for any net/http stack and
// CheckHook instruments individual health checks with spans, a duration
// histogram and warn level logs.
package observe
