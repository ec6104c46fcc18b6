package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sony/gobreaker"
	"github.com/soundprediction/minigraph/pkg/alert"
	"github.com/soundprediction/minigraph/pkg/config"
	"github.com/soundprediction/minigraph/pkg/driver"
)

// BreakerOption adjusts a CircuitBreakerExecutor.
type BreakerOption func(*breakerOptions)

type breakerOptions struct {
	isFailure func(error) bool
	logger    *slog.Logger
}

// WithFailurePredicate sets which errors count against the breaker.
// By default only transient driver errors do; a Cypher syntax error says
// nothing about database health.
func WithFailurePredicate(fn func(error) bool) BreakerOption {
	return func(o *breakerOptions) { o.isFailure = fn }
}

// WithBreakerLogger sets the logger for state changes.
func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(o *breakerOptions) { o.logger = logger }
}

// CircuitBreakerExecutor wraps an Executor with circuit breaking logic
type CircuitBreakerExecutor struct {
	next    driver.Executor
	cb      *gobreaker.CircuitBreaker
	alerter alert.Alerter
	name    string
}

// NewCircuitBreakerExecutor creates a new circuit breaker executor
func NewCircuitBreakerExecutor(next driver.Executor, cfg config.CircuitBreakerConfig, alerter alert.Alerter, name string, opts ...BreakerOption) *CircuitBreakerExecutor {
	o := breakerOptions{isFailure: neo4j.IsRetryable, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if alerter == nil {
		alerter = &alert.NoOpAlerter{}
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !o.isFailure(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			o.logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			if to == gobreaker.StateOpen {
				msg := fmt.Sprintf("Circuit Breaker '%s' changed status from %s to %s. Too many failures detected.", name, from, to)
				if err := alerter.Alert(fmt.Sprintf("URGENT: Circuit Breaker Tripped - %s", name), msg); err != nil {
					o.logger.Error("Failed to send alert", "error", err)
				}
			}
		},
	}

	return &CircuitBreakerExecutor{
		next:    next,
		cb:      gobreaker.NewCircuitBreaker(st),
		alerter: alerter,
		name:    name,
	}
}

// Execute implements driver.Executor
func (c *CircuitBreakerExecutor) Execute(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) (*driver.Result, error) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		return c.next.Execute(ctx, mode, query, params)
	})
	if err != nil {
		return nil, err
	}
	out, _ := res.(*driver.Result)
	return out, nil
}

// VerifyConnectivity implements driver.Executor
func (c *CircuitBreakerExecutor) VerifyConnectivity(ctx context.Context) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.next.VerifyConnectivity(ctx)
	})
	return err
}

// Close implements driver.Executor
func (c *CircuitBreakerExecutor) Close(ctx context.Context) error {
	return c.next.Close(ctx)
}

// State reports the breaker state (closed, half-open, open).
func (c *CircuitBreakerExecutor) State() string {
	return c.cb.State().String()
}

func (c *CircuitBreakerExecutor) String() string {
	return describe(c.next)
}
