package checks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/fastuator/health"
)

// RedisChecker checks a Redis server with PING.
type RedisChecker struct {
	name   string
	client redis.UniversalClient
}

// NewRedisChecker creates a Redis checker. The name defaults to "redis".
func NewRedisChecker(name string, client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{name: nameOr(name, "redis"), client: client}
}

// Name returns the checker name.
func (c *RedisChecker) Name() string {
	return c.name
}

// Check pings the server.
func (c *RedisChecker) Check(ctx context.Context) health.Result {
	if c.client == nil {
		return health.Failed(ErrNilClient)
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return health.Failed(fmt.Errorf("redis ping: %w", err))
	}

	result := health.Up()
	if client, ok := c.client.(*redis.Client); ok {
		result = result.WithDetail("addr", client.Options().Addr)
	}
	return result
}
