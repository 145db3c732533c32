package actuator

import "errors"

// ErrInvalidConfig wraps every configuration error returned by New.
var ErrInvalidConfig = errors.New("actuator: invalid config")
