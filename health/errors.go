package health

import "errors"

var (
	// ErrCheckFailed indicates a health check failed.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a health check timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckPanic indicates a health check panicked.
	ErrCheckPanic = errors.New("health: check panicked")

	// ErrInvalidChecker indicates a checker list that cannot be registered.
	ErrInvalidChecker = errors.New("health: invalid checker")
)
