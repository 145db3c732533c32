// Package grpcprobe exposes actuator probes through the standard
// grpc.health.v1.Health service.
//
// Service names map to probe lists: "" and "readiness" run the readiness
// checks, "liveness" and "health" their namesakes. Any other name answers
// NotFound. Watch and List are not implemented.
package grpcprobe

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/jonwraymond/fastuator/health"
	"github.com/jonwraymond/fastuator/observe"
)

// Service names understood by Check.
const (
	ServiceDefault   = ""
	ServiceReadiness = "readiness"
	ServiceLiveness  = "liveness"
	ServiceHealth    = "health"
)

// Prober evaluates probe lists. *actuator.Actuator implements it.
type Prober interface {
	Health(ctx context.Context) health.Report
	Liveness(ctx context.Context) health.Report
	Readiness(ctx context.Context) health.Report
}

// Server implements grpc.health.v1.Health on top of a Prober.
type Server struct {
	healthpb.UnimplementedHealthServer

	prober Prober
	logger observe.Logger
}

// NewServer creates a health server. A nil logger discards probe failures.
func NewServer(p Prober, logger observe.Logger) *Server {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Server{prober: p, logger: logger}
}

// Register creates a Server and registers it on s.
func Register(s grpc.ServiceRegistrar, p Prober, logger observe.Logger) *Server {
	srv := NewServer(p, logger)
	healthpb.RegisterHealthServer(s, srv)
	return srv
}

// Check runs the probe selected by the request's service name.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	var report health.Report
	switch req.GetService() {
	case ServiceDefault, ServiceReadiness:
		report = s.prober.Readiness(ctx)
	case ServiceLiveness:
		report = s.prober.Liveness(ctx)
	case ServiceHealth:
		report = s.prober.Health(ctx)
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}

	if report.Status.IsUp() {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	}

	s.logger.Warn(ctx, "grpc probe failed",
		observe.Field{Key: "service", Value: req.GetService()},
		observe.Field{Key: "components", Value: report.Failing()},
	)
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
}

// ServerOptions returns options instrumenting a grpc.Server with obs traces
// and recovering handler panics as codes.Internal.
func ServerOptions(obs observe.Observer) []grpc.ServerOption {
	recoverPanic := func(p any) error {
		return status.Errorf(codes.Internal, "%v", p)
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(recoverPanic))),
	}
	if obs != nil {
		opts = append(opts, grpc.StatsHandler(otelgrpc.NewServerHandler(
			otelgrpc.WithTracerProvider(obs.TracerProvider()),
		)))
	}
	return opts
}
