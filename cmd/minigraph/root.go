package minigraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mg "github.com/soundprediction/minigraph"
	"github.com/soundprediction/minigraph/pkg/config"
	"github.com/soundprediction/minigraph/pkg/driver"
	"github.com/soundprediction/minigraph/pkg/logger"
	"github.com/soundprediction/minigraph/pkg/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "minigraph",
		Short: "minigraph: bulk helpers for Memgraph",
		Long: `minigraph loads nodes and relationships into Memgraph in chunks and
runs the maintenance statements that go with a bulk import: labels,
attributes, indexes, constraints, degrees and duplicate cleanup.

Connection settings come from the config file, MEMGRAPH_* environment
variables (a .env file is honored) or the --uri/--user/--password flags.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.minigraph.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	rootCmd.PersistentFlags().String("uri", "", "Bolt URI (default bolt://localhost:7687)")
	rootCmd.PersistentFlags().String("user", "", "Database username")
	rootCmd.PersistentFlags().String("password", "", "Database password")
	rootCmd.PersistentFlags().String("database", "", "Database name")

	// Bind flags to viper
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".minigraph" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".minigraph")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// session is what a subcommand needs to talk to the database.
type session struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *driver.MemgraphDriver
	telemetry *telemetry.ParquetHandler
}

// loadConfig loads the configuration and applies the connection flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("uri") {
		cfg.Database.URIOverride, _ = flags.GetString("uri")
	}
	if flags.Changed("user") {
		cfg.Database.Username, _ = flags.GetString("user")
	}
	if flags.Changed("password") {
		cfg.Database.Password, _ = flags.GetString("password")
	}
	if flags.Changed("database") {
		cfg.Database.Database, _ = flags.GetString("database")
	}
	return cfg, nil
}

// newLogger builds the process logger, teeing errors into Parquet when
// telemetry is enabled.
func newLogger(cfg *config.Config) (*slog.Logger, *telemetry.ParquetHandler) {
	base := logger.NewLogger(os.Stderr, cfg.Log.Format, logger.ParseLevel(cfg.Log.Level))
	if !cfg.Telemetry.Enabled || cfg.Telemetry.ParquetPath == "" {
		return base, nil
	}

	handler, err := telemetry.NewParquetHandler(base.Handler(), cfg.Telemetry.ParquetPath, 0)
	if err != nil {
		base.Warn("Failed to initialize error tracking", "error", err)
		return base, nil
	}
	return slog.New(handler), handler
}

// openSession loads config, builds the logger and opens the database.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openSessionWith(cfg)
}

func openSessionWith(cfg *config.Config) (*session, error) {
	log, sink := newLogger(cfg)
	db, err := mg.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: log, db: db, telemetry: sink}, nil
}

// Close releases the driver and flushes telemetry.
func (s *session) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("Failed to close database", "error", err)
	}
	if s.telemetry != nil {
		if err := s.telemetry.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to flush telemetry: %v\n", err)
		}
	}
}

// commandContext tags the command context for telemetry.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return telemetry.WithValue(ctx, telemetry.ContextKeyCommand, cmd.CommandPath())
}
