package actuator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jonwraymond/fastuator/auth"
	"github.com/jonwraymond/fastuator/health"
	"github.com/jonwraymond/fastuator/observe"
)

// Fixed response details. Failing component names are logged, never served.
const (
	DetailLivenessFailed  = "Liveness check failed"
	DetailReadinessFailed = "Readiness check failed"
	DetailInvalidQuery    = "show_details must be a boolean"
)

type detailResponse struct {
	Detail string `json:"detail"`
}

var statusUp = map[string]health.Status{"status": health.StatusUp}

func (a *Actuator) handleHealth(w http.ResponseWriter, r *http.Request) {
	show, err := parseShowDetails(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, detailResponse{Detail: DetailInvalidQuery})
		return
	}

	report := a.Health(r.Context())
	if !show || !a.detailsAllowed(r) {
		report = report.WithoutComponents()
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *Actuator) handleLiveness(w http.ResponseWriter, r *http.Request) {
	a.writeProbe(w, r, "liveness", a.Liveness(r.Context()), DetailLivenessFailed)
}

func (a *Actuator) handleReadiness(w http.ResponseWriter, r *http.Request) {
	a.writeProbe(w, r, "readiness", a.Readiness(r.Context()), DetailReadinessFailed)
}

func (a *Actuator) writeProbe(w http.ResponseWriter, r *http.Request, probe string, report health.Report, detail string) {
	if report.Status.IsUp() {
		writeJSON(w, http.StatusOK, statusUp)
		return
	}

	a.logger.Warn(r.Context(), probe+" probe failed",
		observe.Field{Key: "probe", Value: probe},
		observe.Field{Key: "components", Value: report.Failing()},
	)
	writeJSON(w, http.StatusServiceUnavailable, detailResponse{Detail: detail})
}

func (a *Actuator) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.info)
}

var errInvalidFlag = errors.New("invalid boolean flag")

// parseShowDetails reads the show_details flag, case-insensitively. A missing
// flag is false.
func parseShowDetails(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("show_details")
	if raw == "" {
		return false, nil
	}
	switch strings.ToLower(raw) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	}
	return false, errInvalidFlag
}

func (a *Actuator) detailsAllowed(r *http.Request) bool {
	switch a.config.ShowDetails {
	case DetailsNever:
		return false
	case DetailsWhenAuthorized:
		if auth.IdentityFromContext(r.Context()) != nil {
			return true
		}
		_, err := auth.Verify(r.Context(), a.auth, auth.NewAuthRequest(r, EndpointHealth))
		return err == nil
	default:
		return true
	}
}

// writeJSON encodes v before writing the header so encoding failures can
// still answer 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal server error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
