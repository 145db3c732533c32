package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/fastuator/auth"
	"github.com/jonwraymond/fastuator/health"
	"github.com/jonwraymond/fastuator/observe"
)

type fakeSampler struct {
	cpu, mem, disk float64
}

func (s fakeSampler) CPUPercent(context.Context) (float64, error) { return s.cpu, nil }

func (s fakeSampler) Memory(context.Context) (health.MemoryStats, error) {
	return health.MemoryStats{UsedPercent: s.mem, Available: 2 << 30}, nil
}

func (s fakeSampler) Disk(context.Context, string) (health.DiskStats, error) {
	return health.DiskStats{UsedPercent: s.disk, Free: 50 << 30}, nil
}

var healthySampler = fakeSampler{cpu: 12, mem: 40, disk: 55}

func upCheck(name string) health.Checker {
	return health.NewCheckerFunc(name, func(context.Context) health.Result { return health.Up() })
}

func failCheck(name, msg string) health.Checker {
	return health.NewErrorCheckerFunc(name, func(context.Context) error { return errors.New(msg) })
}

func newTestActuator(t *testing.T, cfg Config, opts ...Option) *Actuator {
	t.Helper()
	opts = append([]Option{WithSampler(healthySampler), WithLogger(observe.NopLogger())}, opts...)
	a, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func get(t *testing.T, h http.Handler, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestDefaults_HealthyHost(t *testing.T) {
	h := newTestActuator(t, Config{}).Handler()

	rec := get(t, h, "/fastuator/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())

	rec = get(t, h, "/fastuator/liveness")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())

	rec = get(t, h, "/fastuator/readiness")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
}

func TestHealth_ShowDetailsListsChecksInOrder(t *testing.T) {
	h := newTestActuator(t, Config{}).Handler()

	rec := get(t, h, "/fastuator/health?show_details=true")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	cpu, disk, mem := strings.Index(body, `"cpu"`), strings.Index(body, `"disk"`), strings.Index(body, `"memory"`)
	require.True(t, cpu > 0 && disk > 0 && mem > 0, body)
	assert.Less(t, cpu, disk)
	assert.Less(t, disk, mem)

	components := decode(t, rec)["components"].(map[string]any)
	assert.Len(t, components, 3)
	assert.Equal(t, 12.0, components["cpu"].(map[string]any)["cpu_percent"])
	assert.Equal(t, 2048.0, components["memory"].(map[string]any)["memory_available_mb"])
}

func TestHealth_ShowDetailsValues(t *testing.T) {
	h := newTestActuator(t, Config{HealthChecks: []health.Checker{upCheck("a")}}).Handler()

	tests := []struct {
		query      string
		code       int
		components bool
	}{
		{"", http.StatusOK, false},
		{"?show_details=false", http.StatusOK, false},
		{"?show_details=0", http.StatusOK, false},
		{"?show_details=true", http.StatusOK, true},
		{"?show_details=1", http.StatusOK, true},
		{"?show_details=TRUE", http.StatusOK, true},
		{"?show_details=yes", http.StatusOK, true},
		{"?show_details=Y", http.StatusOK, true},
		{"?show_details=on", http.StatusOK, true},
		{"?show_details=T", http.StatusOK, true},
		{"?show_details=off", http.StatusOK, false},
		{"?show_details=no", http.StatusOK, false},
		{"?show_details=N", http.StatusOK, false},
		{"?show_details=maybe", http.StatusBadRequest, false},
		{"?show_details=2", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := get(t, h, "/fastuator/health"+tt.query)
			require.Equal(t, tt.code, rec.Code)
			body := decode(t, rec)
			_, has := body["components"]
			assert.Equal(t, tt.components, has)
			if tt.code == http.StatusBadRequest {
				assert.Equal(t, DetailInvalidQuery, body["detail"])
			}
		})
	}
}

func TestHealth_UnencodableDetailStays200(t *testing.T) {
	sensor := health.NewCheckerFunc("sensor", func(context.Context) health.Result {
		return health.Up().WithDetail("temp", math.NaN())
	})
	h := newTestActuator(t, Config{HealthChecks: []health.Checker{upCheck("db"), sensor}}).Handler()

	rec := get(t, h, "/fastuator/health?show_details=true")
	require.Equal(t, http.StatusOK, rec.Code)

	components := decode(t, rec)["components"].(map[string]any)
	assert.Equal(t, map[string]any{"status": "UP"}, components["db"])
	bad := components["sensor"].(map[string]any)
	assert.Equal(t, "DOWN", bad["status"])
	assert.True(t, strings.HasPrefix(bad["error"].(string), "details: "), bad["error"])
}

func TestHealth_EmptyListRendersEmptyComponents(t *testing.T) {
	h := newTestActuator(t, Config{HealthChecks: []health.Checker{}}).Handler()

	rec := get(t, h, "/fastuator/health?show_details=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP","components":{}}`, rec.Body.String())

	assert.JSONEq(t, `{"status":"UP"}`, get(t, h, "/fastuator/health").Body.String())
}

func TestScenario_FailingCheck(t *testing.T) {
	var logs bytes.Buffer
	a := newTestActuator(t, Config{
		HealthChecks:    []health.Checker{upCheck("db"), failCheck("cache", "connection refused")},
		LivenessChecks:  []health.Checker{upCheck("db")},
		ReadinessChecks: []health.Checker{upCheck("db"), failCheck("cache", "connection refused")},
	}, WithLogger(observe.NewLoggerWithWriter("warn", "json", &logs)))
	h := a.Handler()

	rec := get(t, h, "/fastuator/health?show_details=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"status": "DOWN",
		"components": {
			"db": {"status": "UP"},
			"cache": {"status": "DOWN", "error": "connection refused"}
		}
	}`, rec.Body.String())

	rec = get(t, h, "/fastuator/liveness")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/fastuator/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"detail":"Readiness check failed"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "cache")

	assert.Contains(t, logs.String(), "readiness probe failed")
	assert.Contains(t, logs.String(), `"components":["cache"]`)
}

func TestLiveness_Failing(t *testing.T) {
	a := newTestActuator(t, Config{}, WithSampler(fakeSampler{cpu: 95}))

	rec := get(t, a.Handler(), "/fastuator/liveness")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"detail":"Liveness check failed"}`, rec.Body.String())
}

func TestReadiness_DefaultsToHealthChecks(t *testing.T) {
	a := newTestActuator(t, Config{HealthChecks: []health.Checker{failCheck("db", "down")}})

	assert.Equal(t, http.StatusServiceUnavailable, get(t, a.Handler(), "/fastuator/readiness").Code)
	assert.Equal(t, http.StatusOK, get(t, a.Handler(), "/fastuator/liveness").Code)
}

func TestEmptyCheckListsAreUp(t *testing.T) {
	a := newTestActuator(t, Config{
		HealthChecks:    []health.Checker{},
		LivenessChecks:  []health.Checker{},
		ReadinessChecks: []health.Checker{},
	})

	for _, p := range []string{"/fastuator/health?show_details=true", "/fastuator/liveness", "/fastuator/readiness"} {
		rec := get(t, a.Handler(), p)
		assert.Equal(t, http.StatusOK, rec.Code, p)
		assert.Equal(t, "UP", decode(t, rec)["status"], p)
	}
}

func TestFailuresAreIsolated(t *testing.T) {
	a := newTestActuator(t, Config{
		CheckTimeout: 50 * time.Millisecond,
		HealthChecks: []health.Checker{
			health.NewCheckerFunc("panics", func(context.Context) health.Result { panic("boom") }),
			health.NewCheckerFunc("hangs", func(ctx context.Context) health.Result {
				<-ctx.Done()
				time.Sleep(100 * time.Millisecond)
				return health.Up()
			}),
			upCheck("ok"),
		},
	})

	rec := get(t, a.Handler(), "/fastuator/health?show_details=true")
	require.Equal(t, http.StatusOK, rec.Code)

	components := decode(t, rec)["components"].(map[string]any)
	assert.Equal(t, "DOWN", components["panics"].(map[string]any)["status"])
	assert.Contains(t, components["panics"].(map[string]any)["error"], "boom")
	assert.Equal(t, "DOWN", components["hangs"].(map[string]any)["status"])
	assert.Equal(t, "UP", components["ok"].(map[string]any)["status"])
}

func TestCheckerListsAreCopied(t *testing.T) {
	checks := []health.Checker{upCheck("a")}
	a := newTestActuator(t, Config{HealthChecks: checks, ReadinessChecks: checks})

	checks[0] = failCheck("a", "mutated")

	assert.Equal(t, http.StatusOK, get(t, a.Handler(), "/fastuator/readiness").Code)
}

func TestInfo(t *testing.T) {
	a := newTestActuator(t, Config{Name: "orders", Version: "1.4.2"})

	rec := get(t, a.Handler(), "/fastuator/info")
	require.Equal(t, http.StatusOK, rec.Code)

	var info Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "orders", info.Build.Name)
	assert.Equal(t, "1.4.2", info.Build.Version)
	assert.True(t, strings.HasPrefix(info.Build.Runtime, "go"), info.Build.Runtime)
	assert.NotEmpty(t, info.System.Platform)
	assert.NotEmpty(t, info.System.Implementation)
	assert.NotEmpty(t, info.System.InstanceID)
	assert.Equal(t, a.Info(), info)
}

func TestInfo_DefaultVersion(t *testing.T) {
	a := newTestActuator(t, Config{})
	assert.NotEmpty(t, a.Info().Build.Version)
}

func TestMetrics_Exposition(t *testing.T) {
	h := newTestActuator(t, Config{}).Handler()

	get(t, h, "/fastuator/health")

	rec := get(t, h, "/fastuator/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"), rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, "http_request_duration_seconds_bucket")
	assert.Contains(t, body, `endpoint="/fastuator/health"`)
	assert.Contains(t, body, "app_health_status")
	assert.Contains(t, body, "health_check_duration_seconds")
}

func TestMetrics_HealthGaugeFollowsVerdict(t *testing.T) {
	a := newTestActuator(t, Config{HealthChecks: []health.Checker{failCheck("db", "down")}})
	h := a.Handler()

	get(t, h, "/fastuator/health")
	body := get(t, h, "/fastuator/metrics").Body.String()

	var gauge string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "app_health_status{") || strings.HasPrefix(line, "app_health_status ") {
			gauge = line
		}
	}
	require.NotEmpty(t, gauge, body)
	assert.True(t, strings.HasSuffix(gauge, " 0"), gauge)
}

func TestMetrics_Disabled(t *testing.T) {
	a := newTestActuator(t, Config{DisableMetrics: true})

	assert.Equal(t, http.StatusNotFound, get(t, a.Handler(), "/fastuator/metrics").Code)
	assert.NotContains(t, a.Paths(), "/fastuator/metrics")

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.Equal(t, http.StatusOK, get(t, a.Middleware(next), "/").Code)
}

func TestCustomPrefix(t *testing.T) {
	a := newTestActuator(t, Config{Prefix: "/ops"})

	assert.Equal(t, []string{"/ops/health", "/ops/liveness", "/ops/readiness", "/ops/info", "/ops/metrics"}, a.Paths())
	assert.Equal(t, http.StatusOK, get(t, a.Handler(), "/ops/liveness").Code)
	assert.Equal(t, http.StatusNotFound, get(t, a.Handler(), "/fastuator/liveness").Code)
}

func TestMount_HostRoutesAndMiddleware(t *testing.T) {
	a := newTestActuator(t, Config{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /hello", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hi"))
	})
	a.Mount(mux)
	srv := a.Middleware(mux)

	assert.Equal(t, "hi", get(t, srv, "/hello").Body.String())
	assert.Equal(t, http.StatusOK, get(t, srv, "/fastuator/liveness").Code)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fastuator/liveness", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	body := get(t, srv, "/fastuator/metrics").Body.String()
	assert.Contains(t, body, `endpoint="/hello"`)
}

func TestProtectedEndpoints(t *testing.T) {
	keys := auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, auth.StaticAPIKeys(map[string]string{"s3cr3t": "ops"}))
	a := newTestActuator(t, Config{Protect: []string{EndpointInfo, EndpointMetrics}}, WithAuthenticator(keys))
	h := a.Handler()

	for _, p := range []string{"/fastuator/info", "/fastuator/metrics"} {
		rec := get(t, h, p)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, p)
		assert.JSONEq(t, `{"detail":"Unauthorized"}`, rec.Body.String())

		rec = get(t, h, p, "X-API-Key", "wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, p)

		rec = get(t, h, p, "X-API-Key", "s3cr3t")
		assert.Equal(t, http.StatusOK, rec.Code, p)
	}

	assert.Equal(t, http.StatusOK, get(t, h, "/fastuator/health").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/fastuator/liveness").Code)
}

func TestShowDetails_Policies(t *testing.T) {
	keys := auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, auth.StaticAPIKeys(map[string]string{"k": "ops"}))
	checks := []health.Checker{upCheck("db")}

	never := newTestActuator(t, Config{HealthChecks: checks, ShowDetails: DetailsNever})
	assert.JSONEq(t, `{"status":"UP"}`, get(t, never.Handler(), "/fastuator/health?show_details=true").Body.String())

	authorized := newTestActuator(t, Config{HealthChecks: checks, ShowDetails: DetailsWhenAuthorized}, WithAuthenticator(keys))
	h := authorized.Handler()

	rec := get(t, h, "/fastuator/health?show_details=true")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())

	rec = get(t, h, "/fastuator/health?show_details=true", "X-API-Key", "k")
	assert.JSONEq(t, `{"status":"UP","components":{"db":{"status":"UP"}}}`, rec.Body.String())

	rec = get(t, h, "/fastuator/health", "X-API-Key", "k")
	assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
}

func TestProtectedHealth_WithDetails(t *testing.T) {
	keys := auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, auth.StaticAPIKeys(map[string]string{"k": "ops"}))
	a := newTestActuator(t, Config{
		HealthChecks: []health.Checker{upCheck("db")},
		ShowDetails:  DetailsWhenAuthorized,
		Protect:      []string{EndpointHealth},
	}, WithAuthenticator(keys))

	assert.Equal(t, http.StatusUnauthorized, get(t, a.Handler(), "/fastuator/health").Code)
	rec := get(t, a.Handler(), "/fastuator/health?show_details=1", "X-API-Key", "k")
	assert.JSONEq(t, `{"status":"UP","components":{"db":{"status":"UP"}}}`, rec.Body.String())
}

func TestNew_InvalidConfig(t *testing.T) {
	keys := auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, auth.StaticAPIKeys(nil))

	tests := []struct {
		name string
		cfg  Config
		opts []Option
	}{
		{"prefix without slash", Config{Prefix: "fastuator"}, nil},
		{"prefix trailing slash", Config{Prefix: "/fastuator/"}, nil},
		{"root prefix", Config{Prefix: "/"}, nil},
		{"unknown show details", Config{ShowDetails: "sometimes"}, nil},
		{"when-authorized without authenticator", Config{ShowDetails: DetailsWhenAuthorized}, nil},
		{"protect without authenticator", Config{Protect: []string{EndpointInfo}}, nil},
		{"unknown protected endpoint", Config{Protect: []string{"liveness"}}, []Option{WithAuthenticator(keys)}},
		{"negative concurrency", Config{MaxConcurrency: -1}, nil},
		{"nil checker", Config{HealthChecks: []health.Checker{nil}}, nil},
		{"unnamed checker", Config{LivenessChecks: []health.Checker{upCheck("")}}, nil},
		{"duplicate checker", Config{ReadinessChecks: []health.Checker{upCheck("db"), upCheck("db")}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, append([]Option{WithSampler(healthySampler)}, tt.opts...)...)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNew_DuplicateCheckerWrapsHealthError(t *testing.T) {
	_, err := New(Config{HealthChecks: []health.Checker{upCheck("db"), upCheck("db")}})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, health.ErrInvalidChecker)
}

func TestWithObserver_NotClosed(t *testing.T) {
	obs, err := observe.NewObserver(context.Background(), observe.Config{
		ServiceName: "host",
		Metrics:     observe.MetricsConfig{Enabled: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	a := newTestActuator(t, Config{}, WithObserver(obs))
	assert.Same(t, obs, a.Observer())
	require.NoError(t, a.Close(context.Background()))

	get(t, a.Handler(), "/fastuator/health")
	assert.Contains(t, get(t, obs.MetricsHandler(), "/metrics").Body.String(), "app_health_status")
}

func TestWithObserver_MetricsDisabledRejected(t *testing.T) {
	obs, err := observe.NewObserver(context.Background(), observe.Config{ServiceName: "host"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	_, err = New(Config{}, WithSampler(healthySampler), WithObserver(obs))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	a := newTestActuator(t, Config{DisableMetrics: true}, WithObserver(obs))
	assert.NotContains(t, a.Paths(), "/fastuator/metrics")
}

func TestConcurrentRequests(t *testing.T) {
	h := newTestActuator(t, Config{}).Handler()

	done := make(chan int, 20)
	for i := 0; i < 20; i++ {
		go func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fastuator/health?show_details=true", nil))
			done <- rec.Code
		}()
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, <-done)
	}
}
