package actuator

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/jonwraymond/fastuator/auth"
	"github.com/jonwraymond/fastuator/health"
	"github.com/jonwraymond/fastuator/observe"
)

const defaultName = "fastuator"

// Actuator serves the operational endpoints of one application.
//
// Contract:
// - Concurrency: safe for concurrent use after New returns.
// - State: configuration and checker lists are fixed at construction.
type Actuator struct {
	config Config

	healthChecks    []health.Checker
	livenessChecks  []health.Checker
	readinessChecks []health.Checker

	runner  *health.Runner
	metrics *observe.HTTPMetrics
	auth    auth.Authenticator
	logger  observe.Logger
	info    Info

	observer     observe.Observer
	ownsObserver bool

	routes []route
}

type route struct {
	endpoint string
	path     string
	handler  http.Handler
}

// New validates cfg and builds an Actuator. Errors wrap ErrInvalidConfig.
func New(cfg Config, opts ...Option) (*Actuator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(o.authenticator != nil); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	a := &Actuator{config: cfg, auth: o.authenticator}

	system := health.SystemCheckConfig{Threshold: cfg.Threshold, Path: cfg.DiskPath, Sampler: o.sampler}
	a.healthChecks = cloneOr(cfg.HealthChecks, func() []health.Checker { return health.DefaultCheckers(system) })
	a.livenessChecks = cloneOr(cfg.LivenessChecks, func() []health.Checker { return health.DefaultLivenessCheckers(system) })
	a.readinessChecks = cloneOr(cfg.ReadinessChecks, func() []health.Checker { return slices.Clone(a.healthChecks) })

	for _, list := range []struct {
		name     string
		checkers []health.Checker
	}{
		{"health", a.healthChecks},
		{"liveness", a.livenessChecks},
		{"readiness", a.readinessChecks},
	} {
		if err := health.ValidateCheckers(list.checkers); err != nil {
			return nil, fmt.Errorf("%w: %s checks: %w", ErrInvalidConfig, list.name, err)
		}
	}

	if err := a.setupObserver(cfg, o.observer); err != nil {
		return nil, err
	}
	if o.logger != nil {
		a.logger = o.logger
	}

	hook, err := observe.NewCheckHook(a.observer.Tracer(), a.observer.Meter(), a.logger)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	a.runner = health.NewRunner(health.RunnerConfig{
		Timeout:        cfg.CheckTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
		Hooks:          []health.Hook{hook},
	})

	if !cfg.DisableMetrics {
		if _, disabled := a.observer.Meter().(noop.Meter); disabled {
			_ = a.Close(context.Background())
			return nil, fmt.Errorf("%w: observer has metrics disabled; set DisableMetrics", ErrInvalidConfig)
		}
		a.metrics, err = observe.NewHTTPMetrics(a.observer.Meter())
		if err != nil {
			_ = a.Close(context.Background())
			return nil, err
		}
	}

	a.info = collectInfo(context.Background(), cfg)
	a.routes = a.buildRoutes()
	return a, nil
}

func (a *Actuator) setupObserver(cfg Config, obs observe.Observer) error {
	if obs == nil {
		name := cfg.Name
		if name == "" {
			name = defaultName
		}
		var err error
		obs, err = observe.NewObserver(context.Background(), observe.Config{
			ServiceName: name,
			Version:     cfg.Version,
			Metrics:     observe.MetricsConfig{Enabled: !cfg.DisableMetrics},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "warn"},
		})
		if err != nil {
			return fmt.Errorf("actuator: create observer: %w", err)
		}
		a.ownsObserver = true
	}
	a.observer = obs
	a.logger = obs.Logger()
	return nil
}

func cloneOr(checkers []health.Checker, fallback func() []health.Checker) []health.Checker {
	if checkers == nil {
		return fallback()
	}
	return slices.Clone(checkers)
}

// Close shuts down the observer created by New. Observers passed with
// WithObserver are left to the caller.
func (a *Actuator) Close(ctx context.Context) error {
	if !a.ownsObserver || a.observer == nil {
		return nil
	}
	return a.observer.Shutdown(ctx)
}

// Config returns the effective configuration.
func (a *Actuator) Config() Config {
	return a.config
}

// Observer returns the observer backing metrics, traces and logs.
func (a *Actuator) Observer() observe.Observer {
	return a.observer
}

// Info returns the information served by /info.
func (a *Actuator) Info() Info {
	return a.info
}

// Health evaluates the health checks.
func (a *Actuator) Health(ctx context.Context) health.Report {
	report := a.runner.Evaluate(ctx, a.healthChecks)
	if a.metrics != nil {
		a.metrics.SetHealthStatus(ctx, report.Status.IsUp())
	}
	return report
}

// Liveness evaluates the liveness checks.
func (a *Actuator) Liveness(ctx context.Context) health.Report {
	return a.runner.Evaluate(ctx, a.livenessChecks)
}

// Readiness evaluates the readiness checks.
func (a *Actuator) Readiness(ctx context.Context) health.Report {
	return a.runner.Evaluate(ctx, a.readinessChecks)
}

// Middleware records request metrics for next. It is a pass-through when
// metrics are disabled.
func (a *Actuator) Middleware(next http.Handler) http.Handler {
	if a.metrics == nil {
		return next
	}
	return a.metrics.Middleware(next)
}

// Mount registers the endpoints on mux. Wrap the server's root handler with
// Middleware to record requests.
func (a *Actuator) Mount(mux *http.ServeMux) {
	for _, r := range a.routes {
		mux.Handle("GET "+r.path, r.handler)
	}
}

// Handler returns a self-contained handler serving only the endpoints,
// wrapped with Middleware.
func (a *Actuator) Handler() http.Handler {
	mux := http.NewServeMux()
	a.Mount(mux)
	return a.Middleware(mux)
}

// Paths returns the endpoint paths in registration order.
func (a *Actuator) Paths() []string {
	paths := make([]string, len(a.routes))
	for i, r := range a.routes {
		paths[i] = r.path
	}
	return paths
}

func (a *Actuator) buildRoutes() []route {
	routes := []route{
		{EndpointHealth, "/health", http.HandlerFunc(a.handleHealth)},
		{"liveness", "/liveness", http.HandlerFunc(a.handleLiveness)},
		{"readiness", "/readiness", http.HandlerFunc(a.handleReadiness)},
		{EndpointInfo, "/info", http.HandlerFunc(a.handleInfo)},
	}
	if a.metrics != nil {
		routes = append(routes, route{EndpointMetrics, "/metrics", a.observer.MetricsHandler()})
	}

	for i := range routes {
		routes[i].path = a.config.Prefix + routes[i].path
		if a.config.protects(routes[i].endpoint) {
			routes[i].handler = auth.Require(a.auth, routes[i].endpoint)(routes[i].handler)
		}
	}
	return routes
}
