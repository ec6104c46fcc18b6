package minigraph

import (
	"fmt"
	"log/slog"

	"github.com/soundprediction/minigraph/pkg/alert"
	"github.com/soundprediction/minigraph/pkg/config"
	"github.com/soundprediction/minigraph/pkg/driver"
	"github.com/soundprediction/minigraph/pkg/resilience"
)

// breakerName identifies the database breaker in logs and alerts.
const breakerName = "memgraph"

// Open connects to the database described by cfg and returns a driver whose
// executor carries the configured retry and circuit breaker wrappers.
// The connection is not verified; call VerifyConnectivity for that.
func Open(cfg *config.Config, logger *slog.Logger) (*driver.MemgraphDriver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	bolt, err := driver.NewBoltExecutor(cfg.Database.URI(), cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return driver.NewMemgraphDriverWithExecutor(WrapExecutor(bolt, cfg, logger)).WithLogger(logger), nil
}

// WrapExecutor layers the resilience wrappers enabled in cfg around exec.
// Retries sit inside the breaker so one logical call counts once.
func WrapExecutor(exec driver.Executor, cfg *config.Config, logger *slog.Logger) driver.Executor {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Retry.Enabled {
		exec = resilience.NewRetryExecutor(exec, resilience.RetryConfigFrom(cfg.Retry), logger)
	}
	if cfg.CircuitBreaker.Enabled {
		exec = resilience.NewCircuitBreakerExecutor(exec, cfg.CircuitBreaker, alert.New(cfg.Alert, logger), breakerName,
			resilience.WithBreakerLogger(logger))
	}
	return exec
}
