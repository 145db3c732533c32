// Package checks provides health.Checker implementations for common
// dependencies: SQL databases, Redis, Elasticsearch, Kafka, HTTP and gRPC
// services, and anything that can be pinged.
//
// These checks are intended for readiness lists. Liveness should stay limited
// to the process' own host.
//
// WithBreaker wraps any checker in a circuit breaker so a dependency that is
// down is not dialled on every probe.
package checks
