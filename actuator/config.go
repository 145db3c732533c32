package actuator

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jonwraymond/fastuator/health"
)

// DefaultPrefix is the route prefix when Config.Prefix is empty.
const DefaultPrefix = "/fastuator"

// DetailPolicy controls when /health lists its components.
type DetailPolicy string

const (
	// DetailsAlways honours the show_details query flag for every caller.
	DetailsAlways DetailPolicy = "always"
	// DetailsNever ignores the flag.
	DetailsNever DetailPolicy = "never"
	// DetailsWhenAuthorized honours the flag for authenticated callers only.
	DetailsWhenAuthorized DetailPolicy = "when-authorized"
)

// Endpoint identifiers accepted by Config.Protect.
const (
	EndpointHealth  = "health"
	EndpointInfo    = "info"
	EndpointMetrics = "metrics"
)

var protectable = []string{EndpointHealth, EndpointInfo, EndpointMetrics}

// Config configures an Actuator. It is read once by New.
type Config struct {
	// Prefix is prepended to every endpoint path.
	// Default: "/fastuator"
	Prefix string

	// HealthChecks run for /health. Nil selects cpu, disk and memory; an
	// empty non-nil slice runs nothing and reports UP.
	HealthChecks []health.Checker

	// LivenessChecks run for /liveness. Nil selects cpu.
	LivenessChecks []health.Checker

	// ReadinessChecks run for /readiness. Nil reuses the health checks.
	ReadinessChecks []health.Checker

	// DisableMetrics turns off the middleware, the health gauge and /metrics.
	DisableMetrics bool

	// CheckTimeout bounds every single check.
	// Default: 10 seconds
	CheckTimeout time.Duration

	// MaxConcurrency bounds concurrent checks per request (0 = unbounded).
	MaxConcurrency int

	// ShowDetails selects the detail visibility policy.
	// Default: DetailsAlways
	ShowDetails DetailPolicy

	// Protect lists endpoints (health, info, metrics) that require
	// credentials accepted by the configured Authenticator.
	Protect []string

	// Name and Version are reported by /info. Version defaults to the
	// module version from the build info.
	Name    string
	Version string

	// Threshold is the usage percentage at which default system checks fail.
	// Default: 90
	Threshold float64

	// DiskPath is the filesystem sampled by the default disk check.
	// Default: "/"
	DiskPath string
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.ShowDetails == "" {
		c.ShowDetails = DetailsAlways
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = health.DefaultCheckTimeout
	}
	return c
}

// Validate reports configuration errors wrapped in ErrInvalidConfig.
// Checker lists are validated by New once defaults are resolved.
func (c Config) Validate(authenticated bool) error {
	c = c.withDefaults()

	if !strings.HasPrefix(c.Prefix, "/") || (len(c.Prefix) > 1 && strings.HasSuffix(c.Prefix, "/")) {
		return fmt.Errorf("%w: prefix %q must start and must not end with /", ErrInvalidConfig, c.Prefix)
	}
	if c.Prefix == "/" {
		return fmt.Errorf("%w: prefix must not be the root path", ErrInvalidConfig)
	}

	switch c.ShowDetails {
	case DetailsAlways, DetailsNever:
	case DetailsWhenAuthorized:
		if !authenticated {
			return fmt.Errorf("%w: show details %q requires an authenticator", ErrInvalidConfig, c.ShowDetails)
		}
	default:
		return fmt.Errorf("%w: unknown show details policy %q", ErrInvalidConfig, c.ShowDetails)
	}

	for _, ep := range c.Protect {
		if !slices.Contains(protectable, ep) {
			return fmt.Errorf("%w: unknown protected endpoint %q", ErrInvalidConfig, ep)
		}
	}
	if len(c.Protect) > 0 && !authenticated {
		return fmt.Errorf("%w: protected endpoints require an authenticator", ErrInvalidConfig)
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("%w: max concurrency must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) protects(endpoint string) bool {
	return slices.Contains(c.Protect, endpoint)
}
