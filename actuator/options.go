package actuator

import (
	"github.com/jonwraymond/fastuator/auth"
	"github.com/jonwraymond/fastuator/health"
	"github.com/jonwraymond/fastuator/observe"
)

// Option customizes an Actuator.
type Option func(*options)

type options struct {
	observer      observe.Observer
	authenticator auth.Authenticator
	sampler       health.Sampler
	logger        observe.Logger
}

// WithObserver uses obs for metrics, tracing and logging. The caller keeps
// ownership: Close does not shut obs down.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithAuthenticator validates credentials for protected endpoints and the
// when-authorized detail policy.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(o *options) { o.authenticator = a }
}

// WithSampler replaces the gopsutil sampler behind the default system checks.
func WithSampler(s health.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithLogger overrides the observer's logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}
