package checks

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/jonwraymond/fastuator/health"
)

// ErrNoBrokers is returned by a Kafka checker without broker addresses.
var ErrNoBrokers = errors.New("checks: no kafka brokers configured")

// KafkaChecker checks that a Kafka cluster is reachable and has a controller.
type KafkaChecker struct {
	name    string
	brokers []string
	dialer  *kafka.Dialer
}

// NewKafkaChecker creates a Kafka checker. The name defaults to "kafka" and a
// nil dialer uses kafka.DefaultDialer.
func NewKafkaChecker(name string, brokers []string, dialer *kafka.Dialer) *KafkaChecker {
	if dialer == nil {
		dialer = kafka.DefaultDialer
	}
	return &KafkaChecker{
		name:    nameOr(name, "kafka"),
		brokers: append([]string(nil), brokers...),
		dialer:  dialer,
	}
}

// Name returns the checker name.
func (c *KafkaChecker) Name() string {
	return c.name
}

// Check dials the brokers in order and asks the first reachable one for the
// cluster controller.
func (c *KafkaChecker) Check(ctx context.Context) health.Result {
	if len(c.brokers) == 0 {
		return health.Failed(ErrNoBrokers)
	}

	var errs []error
	for _, broker := range c.brokers {
		conn, err := c.dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, fmt.Errorf("dial %s: %w", broker, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		controller, err := conn.Controller()
		_ = conn.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("controller via %s: %w", broker, err))
			continue
		}

		return health.Up().WithDetails(map[string]any{
			"broker":     broker,
			"controller": net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)),
		})
	}
	return health.Failed(fmt.Errorf("kafka: %w", errors.Join(errs...)))
}
