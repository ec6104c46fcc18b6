// Package logger builds the slog loggers used across minigraph.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// Messages about data landing in the database are highlighted in green.
var writePrefixes = []string{"Writing", "Chunk written", "Index created", "Duplicate relationships removed", "Import finished"}

// ColorHandler colors the output of a text handler by level.
type ColorHandler struct {
	inner slog.Handler
	out   io.Writer
	mu    *sync.Mutex
	buf   *strings.Builder
}

// NewColorHandler returns a handler writing colored text records to w.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	buf := &strings.Builder{}
	return &ColorHandler{
		inner: slog.NewTextHandler(buf, opts),
		out:   w,
		mu:    &sync.Mutex{},
		buf:   buf,
	}
}

func (h *ColorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ColorHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf.Reset()
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	line := h.buf.String()

	color := colorFor(r)
	if color == "" {
		_, err := io.WriteString(h.out, line)
		return err
	}
	_, err := fmt.Fprintf(h.out, "%s%s%s\n", color, strings.TrimSuffix(line, "\n"), colorReset)
	return err
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorHandler{inner: h.inner.WithAttrs(attrs), out: h.out, mu: h.mu, buf: h.buf}
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	return &ColorHandler{inner: h.inner.WithGroup(name), out: h.out, mu: h.mu, buf: h.buf}
}

func colorFor(r slog.Record) string {
	switch {
	case r.Level >= slog.LevelError:
		return colorRed
	case r.Level >= slog.LevelWarn:
		return colorYellow
	}
	for _, p := range writePrefixes {
		if strings.HasPrefix(r.Message, p) {
			return colorGreen
		}
	}
	return ""
}

// NewDefaultLogger returns a colored stderr logger at level.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewLogger returns a logger for format ("text" or "json") writing to w.
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(NewColorHandler(w, opts))
}

// ParseLevel maps debug, info, warn and error to slog levels; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
