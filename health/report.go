package health

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Aggregate computes the overall status from a set of results.
// Returns StatusDown if any result is down or failed, StatusUp otherwise.
// An empty set is up: with no dependencies nothing can fail.
func Aggregate(results []Result) Status {
	for _, result := range results {
		if !result.normalize().Status.IsUp() {
			return StatusDown
		}
	}
	return StatusUp
}

// Component is a named check result.
type Component struct {
	Name   string
	Result Result
}

// Components is an ordered list of named results. It renders as a JSON object
// whose keys keep registration order.
type Components []Component

// MarshalJSON writes the components as an ordered JSON object.
func (c Components) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, comp := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(comp.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(comp.Result)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the result registered under name.
func (c Components) Get(name string) (Result, bool) {
	for _, comp := range c {
		if comp.Name == name {
			return comp.Result, true
		}
	}
	return Result{}, false
}

// Report is the aggregate verdict over a set of checks. A nil Components
// omits the key; an empty one renders as {}.
type Report struct {
	Status     Status     `json:"status"`
	Components Components `json:"components,omitzero"`
}

// NewReport pairs names with results and computes the overall status.
// Results without a matching name are keyed check_<index>.
func NewReport(names []string, results []Result) Report {
	components := make(Components, len(results))
	for i, result := range results {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		if name == "" {
			name = "check_" + strconv.Itoa(i)
		}
		components[i] = Component{Name: name, Result: result.normalize()}
	}
	return Report{
		Status:     Aggregate(results),
		Components: components,
	}
}

// WithoutComponents returns the report without its per-component listing.
func (r Report) WithoutComponents() Report {
	r.Components = nil
	return r
}

// Failing returns the names of components that are not up.
func (r Report) Failing() []string {
	var names []string
	for _, comp := range r.Components {
		if !comp.Result.Status.IsUp() {
			names = append(names, comp.Name)
		}
	}
	return names
}
