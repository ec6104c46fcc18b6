// Package resilience wraps a driver.Executor with retries and circuit breaking.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/soundprediction/minigraph/pkg/config"
	"github.com/soundprediction/minigraph/pkg/driver"
)

// RetryConfig holds configuration for retry behavior
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int
	// InitialDelay is the initial delay before the first retry (default: 500ms)
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries (default: 10 seconds)
	MaxDelay time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff (default: 2.0)
	BackoffMultiplier float64
	// ShouldRetry decides whether an error is transient (default: neo4j.IsRetryable)
	ShouldRetry func(error) bool
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		ShouldRetry:       neo4j.IsRetryable,
	}
}

// RetryConfigFrom converts the file configuration.
func RetryConfigFrom(cfg config.RetryConfig) *RetryConfig {
	return &RetryConfig{
		MaxRetries:        cfg.MaxRetries,
		InitialDelay:      time.Duration(cfg.InitialDelay) * time.Millisecond,
		MaxDelay:          time.Duration(cfg.MaxDelay) * time.Millisecond,
		BackoffMultiplier: cfg.Multiplier,
	}
}

// RetryExecutor retries statements that fail with transient errors.
//
// Statements run in auto-commit transactions, so a retried write whose first
// attempt committed before the connection dropped runs twice. MERGE-based
// writes converge; increment-policy edge writes may count a pair twice.
type RetryExecutor struct {
	next   driver.Executor
	config *RetryConfig
	logger *slog.Logger
}

// NewRetryExecutor creates a new retry wrapper
func NewRetryExecutor(next driver.Executor, config *RetryConfig, logger *slog.Logger) *RetryExecutor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	// Ensure sensible defaults
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 500 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}
	if config.ShouldRetry == nil {
		config.ShouldRetry = neo4j.IsRetryable
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &RetryExecutor{
		next:   next,
		config: config,
		logger: logger,
	}
}

// Execute implements driver.Executor with retry logic
func (r *RetryExecutor) Execute(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) (*driver.Result, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		// If this is a retry, wait with exponential backoff
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			r.logger.WarnContext(ctx, "Retrying query", "attempt", attempt, "max_retries", r.config.MaxRetries, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}

		res, err := r.next.Execute(ctx, mode, query, params)
		if err == nil {
			return res, nil
		}
		lastErr = err

		// Non-retryable error, fail immediately
		if !r.config.ShouldRetry(err) {
			return nil, err
		}
	}

	// All retries exhausted
	return nil, fmt.Errorf("failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// VerifyConnectivity implements driver.Executor
func (r *RetryExecutor) VerifyConnectivity(ctx context.Context) error {
	return r.next.VerifyConnectivity(ctx)
}

// Close implements driver.Executor
func (r *RetryExecutor) Close(ctx context.Context) error {
	return r.next.Close(ctx)
}

func (r *RetryExecutor) String() string {
	return describe(r.next)
}

// calculateDelay calculates the delay for a given retry attempt using exponential backoff
func (r *RetryExecutor) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))

	// Cap at MaxDelay
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	return time.Duration(delay)
}

func describe(e driver.Executor) string {
	if s, ok := e.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", e)
}
