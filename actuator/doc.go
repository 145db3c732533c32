// Package actuator attaches operational endpoints to an HTTP server.
//
// An Actuator serves, under a common prefix (default /fastuator):
//
//	GET {prefix}/health     aggregate verdict, components with ?show_details=true
//	GET {prefix}/liveness   200 when every liveness check is UP, else 503
//	GET {prefix}/readiness  200 when every readiness check is UP, else 503
//	GET {prefix}/info       build and system information
//	GET {prefix}/metrics    Prometheus exposition of the actuator's registry
//
// Every probe runs its checks concurrently on each request; nothing is
// cached. Middleware records request counts and latencies for the whole host
// server. Adapters mount the endpoints on http.ServeMux, gin and gorilla/mux.
package actuator
