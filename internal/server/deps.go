package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jonwraymond/fastuator/health"
	"github.com/jonwraymond/fastuator/health/checks"
	"github.com/jonwraymond/fastuator/internal/config"
	"github.com/jonwraymond/fastuator/observe"
)

// dependencies holds the readiness checkers and the clients behind them.
type dependencies struct {
	checkers []health.Checker
	closers  []func() error
}

func buildDependencies(cfg config.DepsConfig, logger observe.Logger) (*dependencies, error) {
	d := &dependencies{checkers: []health.Checker{}}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.add(checks.NewRedisChecker("redis", client), client.Close)
	}

	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, d.fail(fmt.Errorf("open postgres: %w", err))
		}
		d.add(checks.NewSQLChecker("postgres", db), db.Close)
	}

	if len(cfg.Elasticsearch.Addresses) > 0 {
		client, err := es.NewClient(es.Config{
			Addresses: cfg.Elasticsearch.Addresses,
			APIKey:    cfg.Elasticsearch.APIKey,
		})
		if err != nil {
			return nil, d.fail(fmt.Errorf("elasticsearch client: %w", err))
		}
		d.add(checks.NewElasticsearchChecker("elasticsearch", client), nil)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		d.add(checks.NewKafkaChecker("kafka", cfg.Kafka.Brokers, nil), nil)
	}

	for _, dep := range cfg.HTTP {
		d.add(checks.NewHTTPChecker(dep.Name, dep.URL, nil), nil)
	}

	for _, dep := range cfg.GRPC {
		conn, err := grpc.NewClient(dep.Target, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, d.fail(fmt.Errorf("grpc client %s: %w", dep.Target, err))
		}
		d.add(checks.NewGRPCChecker(dep.Name, conn, dep.Service), conn.Close)
	}

	if cfg.Breaker.MaxFailures > 0 {
		onChange := func(name string, from, to checks.BreakerState) {
			logger.Warn(context.Background(), "dependency circuit changed",
				observe.Field{Key: "check", Value: name},
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		}
		for i, c := range d.checkers {
			d.checkers[i] = checks.WithBreaker(c, checks.BreakerConfig{
				MaxFailures:   cfg.Breaker.MaxFailures,
				ResetTimeout:  cfg.Breaker.ResetTimeout,
				OnStateChange: onChange,
			})
		}
	}

	return d, nil
}

func (d *dependencies) add(c health.Checker, closer func() error) {
	d.checkers = append(d.checkers, c)
	if closer != nil {
		d.closers = append(d.closers, closer)
	}
}

func (d *dependencies) fail(err error) error {
	return errors.Join(err, d.Close())
}

// Close releases every client.
func (d *dependencies) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c())
	}
	d.closers = nil
	return errors.Join(errs...)
}
