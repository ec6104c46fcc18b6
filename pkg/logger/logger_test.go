package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorHandler_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	log.Debug("hidden")
	log.Info("plain message", "k", "v")
	log.Info("Writing nodes", "label", "Person")
	log.Warn("careful")
	log.Error("broken")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 4)
	assert.NotContains(t, lines[0], "\033[")
	assert.Contains(t, lines[0], "k=v")
	assert.True(t, strings.HasPrefix(lines[1], colorGreen))
	assert.True(t, strings.HasPrefix(lines[2], colorYellow))
	assert.True(t, strings.HasPrefix(lines[3], colorRed))
	assert.True(t, strings.HasSuffix(lines[3], colorReset))
}

func TestColorHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, nil)).With("component", "driver")

	log.Info("hello")
	assert.Contains(t, buf.String(), "component=driver")
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "JSON", slog.LevelDebug)
	log.Debug("Query executed", "rows", 3)

	assert.Contains(t, buf.String(), `"msg":"Query executed"`)
	assert.Contains(t, buf.String(), `"rows":3`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
