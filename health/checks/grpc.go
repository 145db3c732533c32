package checks

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/jonwraymond/fastuator/health"
)

// GRPCChecker queries a remote grpc.health.v1.Health service.
type GRPCChecker struct {
	name    string
	service string
	client  healthpb.HealthClient
}

// NewGRPCChecker creates a checker for service on conn. The name defaults
// to "grpc". An empty service asks for the server's overall status.
func NewGRPCChecker(name string, conn grpc.ClientConnInterface, service string) *GRPCChecker {
	c := &GRPCChecker{name: nameOr(name, "grpc"), service: service}
	if conn != nil {
		c.client = healthpb.NewHealthClient(conn)
	}
	return c
}

// Name returns the checker name.
func (c *GRPCChecker) Name() string {
	return c.name
}

// Check is UP when the remote answers SERVING.
func (c *GRPCChecker) Check(ctx context.Context) health.Result {
	if c.client == nil {
		return health.Failed(ErrNilClient)
	}
	resp, err := c.client.Check(ctx, &healthpb.HealthCheckRequest{Service: c.service})
	if err != nil {
		return health.Failed(fmt.Errorf("grpc health: %w", err))
	}

	status := resp.GetStatus()
	result := health.Result{Status: health.StatusFor(status == healthpb.HealthCheckResponse_SERVING)}
	return result.WithDetail("serving_status", status.String())
}
