package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"MEMGRAPH_URI", "MEMGRAPH_USER", "MEMGRAPH_PASSWORD", "MEMGRAPH_DATABASE", "SERVER_HOST", "SERVER_PORT", "TELEMETRY_PARQUET_PATH", "CHECKPOINT_PATH"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "bolt://localhost:7687", cfg.Database.URI())
	assert.Equal(t, "", cfg.Database.Database)
	assert.Equal(t, 100000, cfg.Import.NodeChunkSize)
	assert.Equal(t, 10000, cfg.Import.DuplicateBatchSize)
	assert.True(t, cfg.Retry.Enabled)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.False(t, cfg.CircuitBreaker.Enabled)
	assert.True(t, cfg.Checkpoint.Enabled)
	assert.Equal(t, 5, cfg.Checkpoint.MaxAttempts)
	assert.Equal(t, 7*24*time.Hour, cfg.Checkpoint.MaxAge)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	viper.Reset()
	clearEnv(t)
	t.Setenv("MEMGRAPH_URI", "bolt+s://graph.internal:7688")
	t.Setenv("MEMGRAPH_USER", "loader")
	t.Setenv("MEMGRAPH_PASSWORD", "pw")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CHECKPOINT_PATH", "/tmp/ckpt")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bolt+s://graph.internal:7688", cfg.Database.URI())
	assert.Equal(t, "loader", cfg.Database.Username)
	assert.Equal(t, "pw", cfg.Database.Password)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/ckpt", cfg.Checkpoint.Path)
}

func TestLoad_ConfigFile(t *testing.T) {
	viper.Reset()
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "minigraph.yaml")
	content := `
database:
  address: memgraph
  port: 7444
import:
  edge_chunk_size: 500
circuit_breaker:
  enabled: true
  timeout: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bolt://memgraph:7444", cfg.Database.URI())
	assert.Equal(t, 500, cfg.Import.EdgeChunkSize)
	assert.Equal(t, 100000, cfg.Import.NodeChunkSize)
	assert.True(t, cfg.CircuitBreaker.Enabled)
	assert.Equal(t, 5, cfg.CircuitBreaker.Timeout)
}
