package health

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusUp indicates the component is functioning normally.
	StatusUp Status = "UP"
	// StatusDown indicates the component is not functioning properly.
	StatusDown Status = "DOWN"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsUp reports whether s is StatusUp.
func (s Status) IsUp() bool {
	return s == StatusUp
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusUp || s == StatusDown
}

// Result contains the outcome of a health check.
//
// A Result is either a report (Err is nil, Status is what the check decided)
// or a failure record (Err is set, Status is always StatusDown).
type Result struct {
	// Status is the health status.
	Status Status

	// Details contains check specific fields, e.g. usage percentages.
	Details map[string]any

	// Err is set when the check itself failed to execute.
	Err error

	// Duration is how long the check took. Filled in by the Runner.
	Duration time.Duration
}

// Up creates a healthy result.
func Up() Result {
	return Result{Status: StatusUp}
}

// Down creates an unhealthy result.
func Down() Result {
	return Result{Status: StatusDown}
}

// Failed creates a failure record for a check that could not be executed.
func Failed(err error) Result {
	if err == nil {
		err = ErrCheckFailed
	}
	return Result{Status: StatusDown, Err: err}
}

// StatusFor returns StatusUp when ok is true and StatusDown otherwise.
func StatusFor(ok bool) Status {
	if ok {
		return StatusUp
	}
	return StatusDown
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDetail adds a single detail to a result.
func (r Result) WithDetail(key string, value any) Result {
	details := make(map[string]any, len(r.Details)+1)
	for k, v := range r.Details {
		details[k] = v
	}
	details[key] = value
	r.Details = details
	return r
}

// IsFailure reports whether r is a failure record.
func (r Result) IsFailure() bool {
	return r.Err != nil
}

// normalize enforces the result invariants: failures and unknown statuses are DOWN.
func (r Result) normalize() Result {
	if r.Err != nil || !r.Status.Valid() {
		r.Status = StatusDown
	}
	return r
}

// MarshalJSON renders the result as a flat object. Details are inlined next to
// "status"; failure records carry an "error" field. Details never override
// either key. Details that cannot be encoded render the result as DOWN with
// the encoding error.
func (r Result) MarshalJSON() ([]byte, error) {
	r = r.normalize()
	out := make(map[string]any, len(r.Details)+2)
	for k, v := range r.Details {
		out[k] = v
	}
	out["status"] = r.Status
	if r.Err != nil {
		out["error"] = r.Err.Error()
	} else {
		delete(out, "error")
	}
	data, err := json.Marshal(out)
	if err != nil {
		return json.Marshal(map[string]any{
			"status": StatusDown,
			"error":  "details: " + err.Error(),
		})
	}
	return data, nil
}

// Checker is the interface for health checks.
//
// Contract:
//   - Concurrency: Check may be called concurrently from several requests.
//   - Context: Check should honor cancellation and return promptly once ctx is done.
//   - Errors: failures are reported through Failed, never by panicking.
type Checker interface {
	// Name returns the name of this checker. It keys the component in reports.
	Name() string

	// Check performs the health check and returns the result.
	Check(ctx context.Context) Result
}

// CheckerFunc is an adapter to allow ordinary functions to be used as Checkers.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// NewErrorCheckerFunc adapts a function that only signals failure through an
// error, the common shape of ping style checks.
func NewErrorCheckerFunc(name string, fn func(context.Context) error) *CheckerFunc {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		if err := fn(ctx); err != nil {
			return Failed(err)
		}
		return Up()
	})
}

// Name returns the name of this checker.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check performs the health check.
func (f *CheckerFunc) Check(ctx context.Context) Result {
	if f.fn == nil {
		return Failed(fmt.Errorf("%w: %q has no function", ErrCheckFailed, f.name))
	}
	return f.fn(ctx)
}

// Names returns the names of checkers in order.
func Names(checkers []Checker) []string {
	names := make([]string, len(checkers))
	for i, c := range checkers {
		names[i] = c.Name()
	}
	return names
}

// ValidateCheckers reports the first nil, unnamed or duplicate checker.
func ValidateCheckers(checkers []Checker) error {
	seen := make(map[string]struct{}, len(checkers))
	for i, c := range checkers {
		if c == nil {
			return fmt.Errorf("%w: checker %d is nil", ErrInvalidChecker, i)
		}
		name := c.Name()
		if name == "" {
			return fmt.Errorf("%w: checker %d has no name", ErrInvalidChecker, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate checker name %q", ErrInvalidChecker, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
