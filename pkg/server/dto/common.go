package dto

import (
	"errors"
	"strings"
)

// Validation errors
var (
	ErrEmptyQuery     = errors.New("query cannot be empty")
	ErrQueryTooLong   = errors.New("query exceeds maximum length (64KB)")
	ErrEmptyLabel     = errors.New("label cannot be empty")
	ErrEmptyRecords   = errors.New("records cannot be empty")
	ErrTooManyRecords = errors.New("records count exceeds maximum (1000000)")
	ErrEmptyProperty  = errors.New("property cannot be empty")
)

// MaxFieldLengths defines maximum lengths for fields to prevent abuse
const (
	MaxQueryLength = 64 * 1024
	MaxRecordCount = 1000000
)

// Result represents a generic API result
type Result struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// QueryRequest runs a caller-supplied statement
type QueryRequest struct {
	Query  string         `json:"query" binding:"required"`
	Params map[string]any `json:"params,omitempty"`
}

// Validate performs validation on QueryRequest
func (r *QueryRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if len(r.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	return nil
}

// RowsResponse wraps labelled result rows
type RowsResponse struct {
	Rows  []map[string]any `json:"rows"`
	Count int              `json:"count"`
}

// CountResponse carries a single count
type CountResponse struct {
	Count int64 `json:"count"`
}

// ExistsResponse carries a boolean answer
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

func checkRecords(n int) error {
	if n == 0 {
		return ErrEmptyRecords
	}
	if n > MaxRecordCount {
		return ErrTooManyRecords
	}
	return nil
}
