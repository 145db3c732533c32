package observe

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
)

// RouteFunc derives the endpoint label of a finished request. It is called
// after the wrapped handler returns, so routers that annotate the request
// during dispatch are visible.
type RouteFunc func(r *http.Request) string

// ServeMuxRoute labels requests with the http.ServeMux pattern that matched,
// without its method and host, and falls back to the URL path.
func ServeMuxRoute(r *http.Request) string {
	if p := r.Pattern; p != "" {
		if i := strings.IndexByte(p, '/'); i >= 0 {
			return p[i:]
		}
	}
	return r.URL.Path
}

// Middleware wraps next and records every request it serves, including
// requests whose handler panics. Those are recorded with status 500 before
// the panic continues up the stack. The response is never altered.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return m.MiddlewareWithRoute(m.route)(next)
}

// MiddlewareWithRoute returns a middleware constructor labelling endpoints
// with route, for routers that expose templates in their own way.
func (m *HTTPMetrics) MiddlewareWithRoute(route RouteFunc) func(http.Handler) http.Handler {
	if route == nil {
		route = ServeMuxRoute
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{}
			ww := httpsnoop.Wrap(w, rec.hooks())

			defer func() {
				status := rec.code()
				v := recover()
				if v != nil {
					status = http.StatusInternalServerError
				}
				m.RecordRequest(r.Context(), r.Method, route(r), status, time.Since(start))
				if v != nil {
					panic(v)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// statusRecorder captures the first status code written to a response.
type statusRecorder struct {
	once   sync.Once
	status int
}

func (s *statusRecorder) set(code int) {
	s.once.Do(func() { s.status = code })
}

// code returns the recorded status. A handler that never writes answers 200.
func (s *statusRecorder) code() int {
	s.set(http.StatusOK)
	return s.status
}

func (s *statusRecorder) hooks() httpsnoop.Hooks {
	return httpsnoop.Hooks{
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				if code >= 200 {
					s.set(code)
				}
				next(code)
			}
		},
		Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return func(b []byte) (int, error) {
				s.set(http.StatusOK)
				return next(b)
			}
		},
		ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
			return func(src io.Reader) (int64, error) {
				s.set(http.StatusOK)
				return next(src)
			}
		},
	}
}
