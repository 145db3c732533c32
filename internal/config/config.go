// Package config loads fastuatord settings from a YAML file, .env files and
// FASTUATOR_ prefixed environment variables, in increasing precedence.
//
// Nested keys map to variables by upper-casing and replacing dots with
// underscores: observe.logging.level is FASTUATOR_OBSERVE_LOGGING_LEVEL.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonwraymond/fastuator/observe"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FASTUATOR"

// Routers accepted by server.router.
const (
	RouterStd = "std"
	RouterGin = "gin"
	RouterMux = "mux"
)

// ErrInvalid wraps every validation error.
var ErrInvalid = errors.New("config: invalid")

// Config is the complete daemon configuration.
type Config struct {
	Server       ServerConfig   `mapstructure:"server" yaml:"server"`
	Actuator     ActuatorConfig `mapstructure:"actuator" yaml:"actuator"`
	Observe      ObserveConfig  `mapstructure:"observe" yaml:"observe"`
	Auth         AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Dependencies DepsConfig     `mapstructure:"dependencies" yaml:"dependencies"`
	GRPC         GRPCConfig     `mapstructure:"grpc" yaml:"grpc"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	Router            string        `mapstructure:"router" yaml:"router"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ActuatorConfig mirrors the scalar part of actuator.Config.
type ActuatorConfig struct {
	Name           string        `mapstructure:"name" yaml:"name"`
	Version        string        `mapstructure:"version" yaml:"version"`
	Prefix         string        `mapstructure:"prefix" yaml:"prefix"`
	ShowDetails    string        `mapstructure:"show_details" yaml:"show_details"`
	Protect        []string      `mapstructure:"protect" yaml:"protect"`
	DisableMetrics bool          `mapstructure:"disable_metrics" yaml:"disable_metrics"`
	CheckTimeout   time.Duration `mapstructure:"check_timeout" yaml:"check_timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	Threshold      float64       `mapstructure:"threshold" yaml:"threshold"`
	DiskPath       string        `mapstructure:"disk_path" yaml:"disk_path"`
}

// ObserveConfig configures logging, tracing and metrics.
type ObserveConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig configures the structured logger and optional file rotation.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// TracingConfig selects the trace exporter and sample rate.
type TracingConfig struct {
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
	Exporter  string  `mapstructure:"exporter" yaml:"exporter"`
	SamplePct float64 `mapstructure:"sample_pct" yaml:"sample_pct"`
}

// MetricsConfig selects the metrics exporter and the runtime and host instruments.
type MetricsConfig struct {
	Exporter string `mapstructure:"exporter" yaml:"exporter"`
	Runtime  bool   `mapstructure:"runtime" yaml:"runtime"`
	Host     bool   `mapstructure:"host" yaml:"host"`
}

// AuthConfig selects the credentials protected endpoints accept.
type AuthConfig struct {
	APIKeyHeader string    `mapstructure:"api_key_header" yaml:"api_key_header"`
	APIKeys      []APIKey  `mapstructure:"api_keys" yaml:"api_keys"`
	JWT          JWTConfig `mapstructure:"jwt" yaml:"jwt"`
}

// APIKey grants Principal access. Keys are a list rather than a map because
// map keys lose their case when decoded.
type APIKey struct {
	Key       string `mapstructure:"key" yaml:"key"`
	Principal string `mapstructure:"principal" yaml:"principal"`
}

// APIKeyMap returns the keys indexed by key value.
func (c AuthConfig) APIKeyMap() map[string]string {
	m := make(map[string]string, len(c.APIKeys))
	for _, k := range c.APIKeys {
		m[k.Key] = k.Principal
	}
	return m
}

// JWTConfig verifies bearer tokens against Secret or the keys served at JWKSURL.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	JWKSURL  string        `mapstructure:"jwks_url" yaml:"jwks_url"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	Leeway   time.Duration `mapstructure:"leeway" yaml:"leeway"`
}

// Enabled reports whether any authenticator is configured.
func (c AuthConfig) Enabled() bool {
	return len(c.APIKeys) > 0 || c.JWT.Secret != "" || c.JWT.JWKSURL != ""
}

// DepsConfig lists the dependencies checked by the readiness probe.
// Unset entries are skipped.
type DepsConfig struct {
	Redis         RedisDep         `mapstructure:"redis" yaml:"redis"`
	Postgres      PostgresDep      `mapstructure:"postgres" yaml:"postgres"`
	Elasticsearch ElasticsearchDep `mapstructure:"elasticsearch" yaml:"elasticsearch"`
	Kafka         KafkaDep         `mapstructure:"kafka" yaml:"kafka"`
	HTTP          []HTTPDep        `mapstructure:"http" yaml:"http"`
	GRPC          []GRPCDep        `mapstructure:"grpc" yaml:"grpc"`
	Breaker       BreakerConfig    `mapstructure:"breaker" yaml:"breaker"`
}

// BreakerConfig guards every dependency check with a circuit breaker.
// MaxFailures 0 disables it.
type BreakerConfig struct {
	MaxFailures  int           `mapstructure:"max_failures" yaml:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout"`
}

// RedisDep is checked with PING.
type RedisDep struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// PostgresDep is checked by pinging DSN through lib/pq.
type PostgresDep struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// ElasticsearchDep is checked with a cluster ping.
type ElasticsearchDep struct {
	Addresses []string `mapstructure:"addresses" yaml:"addresses"`
	APIKey    string   `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

// KafkaDep is up when any of Brokers accepts a connection.
type KafkaDep struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
}

// HTTPDep is up when a GET of URL answers 2xx.
type HTTPDep struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url" yaml:"url"`
}

// GRPCDep queries the grpc.health.v1 service at Target for Service.
type GRPCDep struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Target  string `mapstructure:"target" yaml:"target"`
	Service string `mapstructure:"service" yaml:"service"`
}

// GRPCConfig configures the grpc.health.v1 listener. An empty Addr
// disables it.
type GRPCConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.router", RouterStd)
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("actuator.name", "fastuatord")
	v.SetDefault("actuator.version", "")
	v.SetDefault("actuator.prefix", "/fastuator")
	v.SetDefault("actuator.show_details", "always")
	v.SetDefault("actuator.protect", []string{})
	v.SetDefault("actuator.disable_metrics", false)
	v.SetDefault("actuator.check_timeout", 10*time.Second)
	v.SetDefault("actuator.max_concurrency", 0)
	v.SetDefault("actuator.threshold", 90.0)
	v.SetDefault("actuator.disk_path", "/")

	v.SetDefault("observe.logging.level", "info")
	v.SetDefault("observe.logging.format", "json")
	v.SetDefault("observe.logging.file", "")
	v.SetDefault("observe.logging.max_size_mb", 100)
	v.SetDefault("observe.logging.max_backups", 3)
	v.SetDefault("observe.logging.max_age_days", 28)
	v.SetDefault("observe.logging.compress", false)
	v.SetDefault("observe.tracing.enabled", false)
	v.SetDefault("observe.tracing.exporter", "none")
	v.SetDefault("observe.tracing.sample_pct", 1.0)
	v.SetDefault("observe.metrics.exporter", "prometheus")
	v.SetDefault("observe.metrics.runtime", true)
	v.SetDefault("observe.metrics.host", false)

	v.SetDefault("auth.api_key_header", "X-API-Key")
	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.jwks_url", "")
	v.SetDefault("auth.jwt.issuer", "")
	v.SetDefault("auth.jwt.audience", "")
	v.SetDefault("auth.jwt.leeway", time.Duration(0))

	v.SetDefault("dependencies.redis.addr", "")
	v.SetDefault("dependencies.redis.password", "")
	v.SetDefault("dependencies.redis.db", 0)
	v.SetDefault("dependencies.postgres.dsn", "")
	v.SetDefault("dependencies.elasticsearch.addresses", []string{})
	v.SetDefault("dependencies.elasticsearch.api_key", "")
	v.SetDefault("dependencies.kafka.brokers", []string{})
	v.SetDefault("dependencies.breaker.max_failures", 3)
	v.SetDefault("dependencies.breaker.reset_timeout", 30*time.Second)

	v.SetDefault("grpc.addr", "")
}

// Load reads path, or fastuator.yaml from the working directory or
// /etc/fastuator when path is empty. A missing default file is not an
// error; a missing explicit one is. .env and .env.local are loaded first
// without overriding variables already set.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fastuator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fastuator")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// Validate checks the fields the daemon interprets itself. Actuator and
// observer settings are validated by their own packages.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", ErrInvalid)
	}
	if !slices.Contains([]string{RouterStd, RouterGin, RouterMux}, c.Server.Router) {
		return fmt.Errorf("%w: unknown server.router %q", ErrInvalid, c.Server.Router)
	}
	if c.Auth.JWT.Secret != "" && c.Auth.JWT.JWKSURL != "" {
		return fmt.Errorf("%w: auth.jwt.secret and auth.jwt.jwks_url are exclusive", ErrInvalid)
	}
	for i, k := range c.Auth.APIKeys {
		if k.Key == "" || k.Principal == "" {
			return fmt.Errorf("%w: auth.api_keys[%d] needs key and principal", ErrInvalid, i)
		}
	}
	for i, dep := range c.Dependencies.HTTP {
		if dep.URL == "" {
			return fmt.Errorf("%w: dependencies.http[%d].url is required", ErrInvalid, i)
		}
	}
	for i, dep := range c.Dependencies.GRPC {
		if dep.Target == "" {
			return fmt.Errorf("%w: dependencies.grpc[%d].target is required", ErrInvalid, i)
		}
	}
	return nil
}

// ObserverConfig converts the observe section for observe.NewObserver.
func (c *Config) ObserverConfig() observe.Config {
	o := c.Observe
	return observe.Config{
		ServiceName: c.Actuator.Name,
		Version:     c.Actuator.Version,
		Tracing: observe.TracingConfig{
			Enabled:   o.Tracing.Enabled,
			Exporter:  o.Tracing.Exporter,
			SamplePct: o.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  !c.Actuator.DisableMetrics,
			Exporter: o.Metrics.Exporter,
			Runtime:  o.Metrics.Runtime,
			Host:     o.Metrics.Host,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   o.Logging.Level,
			Format:  o.Logging.Format,
			File: observe.LogFileConfig{
				Path:       o.Logging.File,
				MaxSizeMB:  o.Logging.MaxSizeMB,
				MaxBackups: o.Logging.MaxBackups,
				MaxAgeDays: o.Logging.MaxAgeDays,
				Compress:   o.Logging.Compress,
			},
		},
	}
}
