package minigraph

import (
	"bytes"
	"testing"

	"github.com/soundprediction/minigraph/pkg/config"
	"github.com/soundprediction/minigraph/pkg/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{
		{"nodes"}, {"edges"}, {"checkpoints"}, {"query"},
		{"labels", "add"}, {"labels", "remove"}, {"labels", "exists"},
		{"attr", "set"}, {"attr", "remove"}, {"attr", "exists"}, {"attr", "range"},
		{"index"}, {"constraint"}, {"count"}, {"degree"}, {"dedupe"}, {"wipe"}, {"server"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestParseParams(t *testing.T) {
	params, err := parseParams(`{"age": 30, "ratio": 0.5, "tags": ["a"]}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"age": int64(30), "ratio": 0.5, "tags": []any{"a"}}, params)

	params, err = parseParams("  ")
	require.NoError(t, err)
	assert.Nil(t, params)

	_, err = parseParams(`[{"a": 1}, {"b": 2}]`)
	assert.Error(t, err)
}

func TestParseAssignments(t *testing.T) {
	props, err := parseAssignments([]string{"id=7", "name=ada", "active=true", `quoted="42"`, "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":     int64(7),
		"name":   "ada",
		"active": true,
		"quoted": "42",
		"empty":  "",
	}, props)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	rows := []driver.Row{{"name": "ada"}}

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, rows, "json"))
	assert.JSONEq(t, `[{"name": "ada"}]`, buf.String())

	buf.Reset()
	require.NoError(t, printResult(&buf, rows, "yaml"))
	assert.Equal(t, "- name: ada\n", buf.String())

	assert.Error(t, printResult(&buf, rows, "xml"))
}

func TestValidateServerConfig(t *testing.T) {
	cfg := &config.Config{
		Server:   config.ServerConfig{Port: 8080},
		Database: config.DatabaseConfig{URIOverride: "bolt://localhost:7687"},
	}
	assert.NoError(t, validateServerConfig(cfg))

	cfg.Server.Port = 70000
	assert.Error(t, validateServerConfig(cfg))
}

func TestInvalidURIFlag(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"count", "Person", "--uri", "localhost"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid memgraph uri")
}
