package minigraph

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/soundprediction/minigraph/pkg/records"
	"gopkg.in/yaml.v3"
)

// printResult writes v to w as indented JSON or YAML.
func printResult(w io.Writer, v any, format string) error {
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

// parseParams decodes a JSON object given on the command line.
// An empty string means no parameters.
func parseParams(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	recs, err := records.ParseJSON([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("invalid --params: %w", err)
	}
	if len(recs) != 1 {
		return nil, fmt.Errorf("invalid --params: expected one JSON object, got %d", len(recs))
	}
	return recs[0], nil
}

// parseAssignments turns key=value pairs into a map. Values that parse as
// JSON scalars (numbers, booleans, quoted strings) keep their type.
func parseAssignments(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		out[key] = scalar(value)
	}
	return out, nil
}

func scalar(s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	switch v.(type) {
	case json.Number, bool, string:
		return records.Normalize(v)
	default:
		return s
	}
}
