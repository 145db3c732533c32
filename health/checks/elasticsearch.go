package checks

import (
	"context"
	"fmt"
	"io"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonwraymond/fastuator/health"
)

// ElasticsearchChecker checks an Elasticsearch cluster with a HEAD / request.
type ElasticsearchChecker struct {
	name   string
	client *es.Client
}

// NewElasticsearchChecker creates an Elasticsearch checker. The name defaults
// to "elasticsearch".
func NewElasticsearchChecker(name string, client *es.Client) *ElasticsearchChecker {
	return &ElasticsearchChecker{name: nameOr(name, "elasticsearch"), client: client}
}

// Name returns the checker name.
func (c *ElasticsearchChecker) Name() string {
	return c.name
}

// Check pings the cluster. Any error response is DOWN.
func (c *ElasticsearchChecker) Check(ctx context.Context) health.Result {
	if c.client == nil {
		return health.Failed(ErrNilClient)
	}

	res, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		return health.Failed(fmt.Errorf("elasticsearch ping: %w", err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	result := health.Result{Status: health.StatusFor(!res.IsError())}
	return result.WithDetail("status_code", res.StatusCode)
}
