// Package health provides the health checking core of fastuator.
//
// It defines pluggable checks, runs them concurrently with failure isolation,
// and reduces their results into a single UP/DOWN verdict.
//
// # Core Concepts
//
// A Checker is any component that can report its health status. Its Result
// is either a report (Status plus free-form Details) or a failure record
// created with Failed, which is always DOWN.
//
// # Running Checks
//
// A Runner executes a list of checkers concurrently and returns their results
// in registration order. Panics, errors and timeouts are converted into
// failure records so that one broken check never hides the others:
//
//	runner := health.NewRunner(health.RunnerConfig{Timeout: 2 * time.Second})
//	report := runner.Evaluate(ctx, []health.Checker{
//	    health.NewCPUChecker(health.SystemCheckConfig{}),
//	    health.NewErrorCheckerFunc("database", db.PingContext),
//	})
//
// # Aggregation
//
// Aggregate is DOWN when any result is DOWN and UP otherwise, including for
// an empty list. Report keeps the per-component listing in order for
// detailed rendering.
//
// # Default Checks
//
// DefaultCheckers returns the cpu, disk and memory checks backed by gopsutil;
// DefaultLivenessCheckers returns only the cpu check.
package health
