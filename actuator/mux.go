package actuator

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// RegisterMux registers the endpoints on a gorilla/mux router.
func (a *Actuator) RegisterMux(r *mux.Router) {
	for _, rt := range a.routes {
		r.Handle(rt.path, rt.handler).Methods(http.MethodGet)
	}
}

// InstrumentMux installs tracing and request metrics on r. Metrics are
// labelled with the matched route template.
func (a *Actuator) InstrumentMux(r *mux.Router) {
	name := a.config.Name
	if name == "" {
		name = defaultName
	}
	r.Use(otelmux.Middleware(name, otelmux.WithTracerProvider(a.observer.TracerProvider())))
	if a.metrics != nil {
		r.Use(a.metrics.MiddlewareWithRoute(muxRoute))
	}
}

func muxRoute(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
