package driver

import (
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// TypeConversionError represents an error during type conversion from database types.
type TypeConversionError struct {
	Expected string
	Actual   string
	Field    string
}

func (e *TypeConversionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("type conversion error for field %q: expected %s, got %s", e.Field, e.Expected, e.Actual)
	}
	return fmt.Sprintf("type conversion error: expected %s, got %s", e.Expected, e.Actual)
}

// NewTypeConversionError creates a new TypeConversionError.
func NewTypeConversionError(expected, actual, field string) *TypeConversionError {
	return &TypeConversionError{
		Expected: expected,
		Actual:   actual,
		Field:    field,
	}
}

// AsDBNode safely converts an interface{} to dbtype.Node.
func AsDBNode(v any) (dbtype.Node, bool) {
	if v == nil {
		return dbtype.Node{}, false
	}
	node, ok := v.(dbtype.Node)
	return node, ok
}

// AsDBRelationship safely converts an interface{} to dbtype.Relationship.
func AsDBRelationship(v any) (dbtype.Relationship, bool) {
	if v == nil {
		return dbtype.Relationship{}, false
	}
	rel, ok := v.(dbtype.Relationship)
	return rel, ok
}

// AsString safely converts an interface{} to string.
func AsString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// AsInt64 converts Bolt integers, and the other Go integer kinds callers
// tend to pass around, to int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	default:
		return 0, false
	}
}

// AsAnySlice safely converts an interface{} to []any.
func AsAnySlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	s, ok := v.([]any)
	return s, ok
}

// MustInt64 converts an interface{} to int64 or returns an error.
func MustInt64(v any, field string) (int64, error) {
	i, ok := AsInt64(v)
	if !ok {
		return 0, NewTypeConversionError("int64", fmt.Sprintf("%T", v), field)
	}
	return i, nil
}

// FirstValue returns the value of key in the first row.
func FirstValue(rows []Row, key string) (any, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: expected column %q", ErrNoRows, key)
	}
	v, ok := rows[0][key]
	if !ok {
		return nil, fmt.Errorf("%w: column %q missing", ErrNoRows, key)
	}
	return v, nil
}

// FirstInt64 returns the integer value of key in the first row.
func FirstInt64(rows []Row, key string) (int64, error) {
	v, err := FirstValue(rows, key)
	if err != nil {
		return 0, err
	}
	return MustInt64(v, key)
}
