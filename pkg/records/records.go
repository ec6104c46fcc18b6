// Package records reads import files into the record maps the driver writes.
//
// JSON arrays, JSON Lines and YAML lists are supported. Slightly malformed
// JSON (trailing commas, single quotes, unquoted keys) is repaired before
// giving up. Integral numbers decode as int64 so they round-trip as Bolt
// integers instead of floats.
package records

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"
)

// Format of an import file.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// ErrUnknownFormat is returned for file extensions without a decoder.
var ErrUnknownFormat = errors.New("unknown record format")

// DetectFormat maps a file extension to a Format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// LoadFile reads every record in path, choosing the decoder by extension.
func LoadFile(path string) ([]map[string]any, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recs, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// Decode reads records in format from r.
func Decode(r io.Reader, format Format) ([]map[string]any, error) {
	switch format {
	case FormatJSONL:
		return decodeJSONL(r)
	case FormatJSON, FormatYAML:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		if format == FormatJSON {
			return ParseJSON(data)
		}
		return ParseYAML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ParseJSON decodes an array of objects, or a single object.
func ParseJSON(data []byte) ([]map[string]any, error) {
	v, err := decodeJSONValue(data)
	if err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(string(data))
		if repairErr != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		if v, err = decodeJSONValue([]byte(repaired)); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}
	return toRecords(v)
}

func decodeJSONValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func decodeJSONL(r io.Reader) ([]map[string]any, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var out []map[string]any
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		recs, err := ParseJSON([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, recs...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseYAML decodes a YAML list of mappings, or a single mapping.
func ParseYAML(data []byte) ([]map[string]any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML structure: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]

	items := []*yaml.Node{root}
	if root.Kind == yaml.SequenceNode {
		items = root.Content
	}

	out := make([]map[string]any, 0, len(items))
	for i, node := range items {
		var item map[string]any
		if err := node.Decode(&item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item %d: %w", i, err)
		}
		out = append(out, Normalize(item).(map[string]any))
	}
	return out, nil
}

func toRecords(v any) ([]map[string]any, error) {
	switch t := Normalize(v).(type) {
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		out := make([]map[string]any, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d: expected object, got %T", i, item)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected object or array of objects, got %T", t)
	}
}

// Normalize converts decoded numbers (json.Number, int) to int64 or float64,
// recursively through maps and slices. Maps and slices are updated in place.
func Normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case int:
		return int64(t)
	case map[string]any:
		for k, item := range t {
			t[k] = Normalize(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = Normalize(item)
		}
		return t
	default:
		return v
	}
}
