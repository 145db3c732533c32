package checks

import (
	"context"
	"errors"

	"github.com/jonwraymond/fastuator/health"
)

// ErrNilClient is returned by checks constructed without a client.
var ErrNilClient = errors.New("checks: nil client")

// Pinger is implemented by clients with a context aware ping, e.g. *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewPingerChecker creates a checker that is UP when p.PingContext succeeds.
func NewPingerChecker(name string, p Pinger) health.Checker {
	return health.NewErrorCheckerFunc(name, func(ctx context.Context) error {
		if p == nil {
			return ErrNilClient
		}
		return p.PingContext(ctx)
	})
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
