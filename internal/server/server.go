// Package server assembles fastuatord: the observer, dependency checks,
// authenticator and actuator behind the configured router, plus an optional
// grpc.health.v1 listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/jonwraymond/fastuator/actuator"
	"github.com/jonwraymond/fastuator/grpcprobe"
	"github.com/jonwraymond/fastuator/health"
	"github.com/jonwraymond/fastuator/internal/config"
	"github.com/jonwraymond/fastuator/observe"
)

// Option customizes a Server.
type Option func(*Server)

// WithSampler replaces the host sampler behind the system checks.
func WithSampler(s health.Sampler) Option {
	return func(srv *Server) { srv.sampler = s }
}

// Server is a configured fastuatord instance.
type Server struct {
	cfg     *config.Config
	sampler health.Sampler

	obs    observe.Observer
	logger observe.Logger
	deps   *dependencies
	act    *actuator.Actuator

	handler http.Handler
	http    *http.Server
	grpc    *grpc.Server
}

// New builds every component described by cfg. Nothing listens until
// Run or Serve.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	obs, err := observe.NewObserver(ctx, cfg.ObserverConfig())
	if err != nil {
		return nil, fmt.Errorf("create observer: %w", err)
	}
	s.obs = obs
	s.logger = obs.Logger().With(observe.Field{Key: "component", Value: "fastuatord"})

	s.deps, err = buildDependencies(cfg.Dependencies, s.logger)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	system := health.SystemCheckConfig{
		Threshold: cfg.Actuator.Threshold,
		Path:      cfg.Actuator.DiskPath,
		Sampler:   s.sampler,
	}
	opt := []actuator.Option{actuator.WithObserver(obs)}
	if s.sampler != nil {
		opt = append(opt, actuator.WithSampler(s.sampler))
	}
	if a := buildAuthenticator(cfg.Auth); a != nil {
		opt = append(opt, actuator.WithAuthenticator(a))
	}

	s.act, err = actuator.New(actuator.Config{
		Prefix:          cfg.Actuator.Prefix,
		HealthChecks:    append(health.DefaultCheckers(system), s.deps.checkers...),
		ReadinessChecks: s.deps.checkers,
		DisableMetrics:  cfg.Actuator.DisableMetrics,
		CheckTimeout:    cfg.Actuator.CheckTimeout,
		MaxConcurrency:  cfg.Actuator.MaxConcurrency,
		ShowDetails:     actuator.DetailPolicy(cfg.Actuator.ShowDetails),
		Protect:         cfg.Actuator.Protect,
		Name:            cfg.Actuator.Name,
		Version:         cfg.Actuator.Version,
		Threshold:       cfg.Actuator.Threshold,
		DiskPath:        cfg.Actuator.DiskPath,
	}, opt...)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}

	s.handler = s.routes()
	s.http = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	if cfg.GRPC.Addr != "" {
		s.grpc = grpc.NewServer(grpcprobe.ServerOptions(obs)...)
		grpcprobe.Register(s.grpc, s.act, s.logger)
	}
	return s, nil
}

// Handler returns the HTTP handler serving the actuator and the demo routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Actuator returns the underlying actuator.
func (s *Server) Actuator() *actuator.Actuator {
	return s.act
}

func (s *Server) routes() http.Handler {
	switch s.cfg.Server.Router {
	case config.RouterGin:
		gin.SetMode(gin.ReleaseMode)
		engine := gin.New()
		engine.Use(gin.Recovery(), s.act.GinMiddleware())
		s.act.RegisterGin(engine)
		engine.GET("/hello", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "hello"})
		})
		return engine

	case config.RouterMux:
		r := mux.NewRouter()
		s.act.InstrumentMux(r)
		s.act.RegisterMux(r)
		r.HandleFunc("/hello", hello).Methods(http.MethodGet)
		return r

	default:
		m := http.NewServeMux()
		s.act.Mount(m)
		m.HandleFunc("GET /hello", hello)
		return s.act.Middleware(m)
	}
}

func hello(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"message":"hello"}` + "\n"))
}

// Run listens on the configured addresses and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}

	var grpcLis net.Listener
	if s.grpc != nil {
		grpcLis, err = net.Listen("tcp", s.cfg.GRPC.Addr)
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve serves on the given listeners until ctx is done or a server fails,
// then shuts both down gracefully. grpcLis is ignored when the gRPC
// listener is disabled.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info(gctx, "http server listening",
			observe.Field{Key: "addr", Value: httpLis.Addr().String()},
			observe.Field{Key: "router", Value: s.cfg.Server.Router},
			observe.Field{Key: "paths", Value: s.act.Paths()},
		)
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if s.grpc != nil && grpcLis != nil {
		g.Go(func() error {
			s.logger.Info(gctx, "grpc server listening", observe.Field{Key: "addr", Value: grpcLis.Addr().String()})
			if err := s.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	s.logger.Info(context.Background(), "shutting down",
		observe.Field{Key: "timeout", Value: s.cfg.Server.ShutdownTimeout.String()},
	)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.grpc != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.grpc.Stop()
		}
	}

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases the actuator, dependency clients and the observer.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	if s.act != nil {
		errs = append(errs, s.act.Close(ctx))
	}
	if s.deps != nil {
		errs = append(errs, s.deps.Close())
	}
	if s.obs != nil {
		errs = append(errs, s.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
