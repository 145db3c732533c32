package checks

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonwraymond/fastuator/health"
)

// SQLChecker checks a database/sql pool with PingContext.
type SQLChecker struct {
	name string
	db   *sql.DB
}

// NewSQLChecker creates a database checker. The name defaults to "database".
func NewSQLChecker(name string, db *sql.DB) *SQLChecker {
	return &SQLChecker{name: nameOr(name, "database"), db: db}
}

// Name returns the checker name.
func (c *SQLChecker) Name() string {
	return c.name
}

// Check pings the database and reports pool usage.
func (c *SQLChecker) Check(ctx context.Context) health.Result {
	if c.db == nil {
		return health.Failed(ErrNilClient)
	}
	if err := c.db.PingContext(ctx); err != nil {
		return health.Failed(fmt.Errorf("database ping: %w", err))
	}

	stats := c.db.Stats()
	return health.Up().WithDetails(map[string]any{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
	})
}
