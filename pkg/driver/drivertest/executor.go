// Package drivertest provides an in-memory driver.Executor for tests that
// need to check generated statements without a running database.
package drivertest

import (
	"context"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/soundprediction/minigraph/pkg/driver"
)

// Call records one Execute invocation.
type Call struct {
	Mode   neo4j.AccessMode
	Query  string
	Params map[string]any
}

type response struct {
	result *driver.Result
	err    error
}

// Executor records statements and replays queued results in order.
// Once the queue is empty every call succeeds with no records.
type Executor struct {
	// Respond, when set, takes precedence over the queue.
	Respond func(call Call) (*driver.Result, error)
	// ConnectivityErr is returned by VerifyConnectivity.
	ConnectivityErr error

	mu     sync.Mutex
	calls  []Call
	queue  []response
	closed bool
}

var _ driver.Executor = (*Executor)(nil)

// New returns an empty Executor.
func New() *Executor {
	return &Executor{}
}

// Enqueue appends a scripted outcome for the next unanswered call.
func (e *Executor) Enqueue(result *driver.Result, err error) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, response{result: result, err: err})
	return e
}

// Execute implements driver.Executor.
func (e *Executor) Execute(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) (*driver.Result, error) {
	call := Call{Mode: mode, Query: query, Params: params}

	e.mu.Lock()
	e.calls = append(e.calls, call)
	respond := e.Respond
	var next *response
	if respond == nil && len(e.queue) > 0 {
		next = &e.queue[0]
		e.queue = e.queue[1:]
	}
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if respond != nil {
		return respond(call)
	}
	if next != nil {
		return next.result, next.err
	}
	return &driver.Result{}, nil
}

// VerifyConnectivity implements driver.Executor.
func (e *Executor) VerifyConnectivity(ctx context.Context) error {
	return e.ConnectivityErr
}

// Close implements driver.Executor.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Closed reports whether Close was called.
func (e *Executor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Calls returns a copy of the recorded calls.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Queries returns the recorded statements in order.
func (e *Executor) Queries() []string {
	calls := e.Calls()
	queries := make([]string, len(calls))
	for i, c := range calls {
		queries[i] = c.Query
	}
	return queries
}

// Rows builds a result with one record per values slice.
func Rows(keys []string, values ...[]any) *driver.Result {
	records := make([]*db.Record, len(values))
	for i, v := range values {
		records[i] = &db.Record{Keys: keys, Values: v}
	}
	return &driver.Result{Keys: keys, Records: records}
}

// Value builds a single-row, single-column result.
func Value(key string, v any) *driver.Result {
	return Rows([]string{key}, []any{v})
}
