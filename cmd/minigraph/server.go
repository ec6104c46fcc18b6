package minigraph

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/soundprediction/minigraph/pkg/config"
	"github.com/soundprediction/minigraph/pkg/server"
	"github.com/soundprediction/minigraph/pkg/utils"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the minigraph HTTP server",
	Long: `Start the minigraph HTTP server to provide REST access to the bulk helpers.

The server provides endpoints for:
- Running read and write statements
- Merging nodes and relationships
- Label, attribute, index, constraint and degree maintenance
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server flags
	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")
	serverCmd.Flags().String("telemetry-parquet-path", "", "Directory for error telemetry (enables telemetry)")
}

func runServer(cmd *cobra.Command, args []string) error {
	s, err := openServerSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := validateServerConfig(s.cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := commandContext(cmd)
	if err := s.db.VerifyConnectivity(ctx); err != nil {
		// The server still starts; /ready reports the outage.
		s.logger.WarnContext(ctx, "Database not reachable", "database", s.db.String(), "error", err)
	}

	srv := server.New(s.cfg, s.db, s.logger)
	srv.Setup()

	serverErrChan := utils.SafeGoWithResult(func() error {
		if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutdown requested")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Server stopped gracefully")
		return nil
	}
}

// openServerSession applies the server flags before connecting.
func openServerSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	overrideConfigWithFlags(cmd, cfg)
	return openSessionWith(cfg)
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server settings
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	// Telemetry
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
		cfg.Telemetry.Enabled = true
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Database.URI() == "" {
		return fmt.Errorf("database URI is required")
	}
	return nil
}
