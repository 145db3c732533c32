package checks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/fastuator/health"
)

type countingChecker struct {
	calls atomic.Int32
	up    atomic.Bool
}

func (c *countingChecker) Name() string { return "dep" }

func (c *countingChecker) Check(context.Context) health.Result {
	c.calls.Add(1)
	if c.up.Load() {
		return health.Up()
	}
	return health.Failed(errors.New("refused"))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newBreaker(inner health.Checker, cfg BreakerConfig) (*BreakerChecker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := WithBreaker(inner, cfg)
	b.now = clock.Now
	return b, clock
}

func TestBreaker_Defaults(t *testing.T) {
	b := WithBreaker(&countingChecker{}, BreakerConfig{})
	assert.Equal(t, 3, b.config.MaxFailures)
	assert.Equal(t, 30*time.Second, b.config.ResetTimeout)
	assert.Equal(t, "dep", b.Name())
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &countingChecker{}
	b, _ := newBreaker(inner, BreakerConfig{MaxFailures: 2, ResetTimeout: time.Second})
	ctx := context.Background()

	assert.Equal(t, health.StatusDown, b.Check(ctx).Status)
	assert.Equal(t, BreakerClosed, b.State())
	b.Check(ctx)
	assert.Equal(t, BreakerOpen, b.State())

	result := b.Check(ctx)
	assert.ErrorIs(t, result.Err, ErrCircuitOpen)
	assert.Equal(t, "open", result.Details["circuit"])
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	inner := &countingChecker{}
	b, _ := newBreaker(inner, BreakerConfig{MaxFailures: 2})
	ctx := context.Background()

	b.Check(ctx)
	inner.up.Store(true)
	b.Check(ctx)
	inner.up.Store(false)
	b.Check(ctx)

	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	inner := &countingChecker{}
	var transitions []string
	b, clock := newBreaker(inner, BreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Minute,
		OnStateChange: func(name string, from, to BreakerState) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	b.Check(ctx)
	require.Equal(t, BreakerOpen, b.State())

	clock.Advance(time.Minute)
	assert.Equal(t, BreakerHalfOpen, b.State())

	// failed probe reopens
	b.Check(ctx)
	assert.Equal(t, BreakerOpen, b.State())

	clock.Advance(time.Minute)
	inner.up.Store(true)
	assert.Equal(t, health.StatusUp, b.Check(ctx).Status)
	assert.Equal(t, BreakerClosed, b.State())

	assert.Equal(t, []string{
		"dep:closed->open",
		"dep:open->half-open",
		"dep:half-open->open",
		"dep:open->half-open",
		"dep:half-open->closed",
	}, transitions)
}

type blockingChecker struct {
	started chan struct{}
	release chan struct{}
}

func (c *blockingChecker) Name() string { return "slow" }

func (c *blockingChecker) Check(context.Context) health.Result {
	close(c.started)
	<-c.release
	return health.Up()
}

func TestBreaker_SingleProbeWhileHalfOpen(t *testing.T) {
	inner := &blockingChecker{started: make(chan struct{}), release: make(chan struct{})}
	b, clock := newBreaker(inner, BreakerConfig{MaxFailures: 1, ResetTimeout: time.Second})
	b.record(false)
	clock.Advance(time.Second)

	done := make(chan health.Result)
	go func() { done <- b.Check(context.Background()) }()
	<-inner.started

	assert.ErrorIs(t, b.Check(context.Background()).Err, ErrCircuitOpen)

	close(inner.release)
	assert.Equal(t, health.StatusUp, (<-done).Status)
	assert.Equal(t, BreakerClosed, b.State())
}

type panicChecker struct{}

func (panicChecker) Name() string                        { return "boom" }
func (panicChecker) Check(context.Context) health.Result { panic("exploded") }

func TestBreaker_PanicCountsAsFailure(t *testing.T) {
	b, _ := newBreaker(panicChecker{}, BreakerConfig{MaxFailures: 1})

	assert.Panics(t, func() { b.Check(context.Background()) })
	assert.Equal(t, BreakerOpen, b.State())

	// the runner still isolates the panic
	results := health.NewRunner().Run(context.Background(), []health.Checker{WithBreaker(panicChecker{}, BreakerConfig{})})
	assert.Equal(t, health.StatusDown, results[0].Status)
}
