package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Import configuration
	Import ImportConfig `mapstructure:"import"`

	// Retry configuration
	Retry RetryConfig `mapstructure:"retry"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Checkpoint configuration
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// RetryConfig holds configuration for retrying transient database errors
type RetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	MaxRetries   int     `mapstructure:"max_retries"`
	InitialDelay int     `mapstructure:"initial_delay_ms"`
	MaxDelay     int     `mapstructure:"max_delay_ms"`
	Multiplier   float64 `mapstructure:"multiplier"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ParquetPath string `mapstructure:"parquet_path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Scheme   string `mapstructure:"scheme"`
	Address  string `mapstructure:"address"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	// URI, when set, wins over scheme/address/port.
	URIOverride string `mapstructure:"uri"`
}

// URI returns the Bolt URI for the database.
func (d DatabaseConfig) URI() string {
	if d.URIOverride != "" {
		return d.URIOverride
	}
	return fmt.Sprintf("%s://%s:%d", d.Scheme, d.Address, d.Port)
}

// ImportConfig holds chunk sizes for bulk writes
type ImportConfig struct {
	NodeChunkSize      int `mapstructure:"node_chunk_size"`
	EdgeChunkSize      int `mapstructure:"edge_chunk_size"`
	LabelChunkSize     int `mapstructure:"label_chunk_size"`
	DuplicateBatchSize int `mapstructure:"duplicate_batch_size"`
}

// CheckpointConfig holds configuration for resumable imports
type CheckpointConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	// A checkpoint that failed MaxAttempts times or is older than MaxAge is
	// discarded and the import restarts. Zero disables the limit.
	MaxAttempts int           `mapstructure:"max_attempts"`
	MaxAge      time.Duration `mapstructure:"max_age"`
}

// Load loads configuration from file and environment variables.
// A .env file in the working directory is read first if present.
func Load() (*Config, error) {
	// Missing .env is the normal case
	_ = godotenv.Load()

	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.scheme", "bolt")
	viper.SetDefault("database.address", "localhost")
	viper.SetDefault("database.port", 7687)
	viper.SetDefault("database.username", "")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "")

	// Import defaults
	viper.SetDefault("import.node_chunk_size", 100000)
	viper.SetDefault("import.edge_chunk_size", 100000)
	viper.SetDefault("import.label_chunk_size", 100000)
	viper.SetDefault("import.duplicate_batch_size", 10000)

	// Retry defaults
	viper.SetDefault("retry.enabled", true)
	viper.SetDefault("retry.max_retries", 3)
	viper.SetDefault("retry.initial_delay_ms", 500)
	viper.SetDefault("retry.max_delay_ms", 10000)
	viper.SetDefault("retry.multiplier", 2.0)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	viper.SetDefault("alert.smtp_port", 587)

	// Telemetry and checkpoint defaults
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("checkpoint.enabled", true)
	viper.SetDefault("checkpoint.max_attempts", 5)
	viper.SetDefault("checkpoint.max_age", 7*24*time.Hour)
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.minigraph/telemetry", home))
		viper.SetDefault("checkpoint.path", fmt.Sprintf("%s/.minigraph/checkpoints", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Database credentials
	if uri := os.Getenv("MEMGRAPH_URI"); uri != "" {
		config.Database.URIOverride = uri
	}
	if user := os.Getenv("MEMGRAPH_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("MEMGRAPH_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if db := os.Getenv("MEMGRAPH_DATABASE"); db != "" {
		config.Database.Database = db
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
	if path := os.Getenv("CHECKPOINT_PATH"); path != "" {
		config.Checkpoint.Path = path
	}
}
