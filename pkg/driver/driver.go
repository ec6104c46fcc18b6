package driver

import (
	"context"
	"errors"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// Default batch sizes used when an option leaves them unset.
const (
	DefaultNodeChunkSize      = 100000
	DefaultEdgeChunkSize      = 100000
	DefaultLabelChunkSize     = 100000
	DefaultDuplicateBatchSize = 10000
)

// Parameter names bound by the bulk statements.
const (
	ParamNodeList   = "node_list"
	ParamEdgeList   = "edge_list"
	ParamIDList     = "id_list"
	ParamImportData = "import_data"
	ParamLimitNum   = "limit_num"
	ParamBatchSize  = "batch_size"
)

var (
	// ErrInvalidIdentifier is returned when a label, relationship type or
	// property name cannot be interpolated into a statement.
	ErrInvalidIdentifier = errors.New("invalid cypher identifier")

	// ErrInvalidDuplicatePolicy is returned for an unknown OnDuplicate value.
	ErrInvalidDuplicatePolicy = errors.New(`on duplicate edges must be either "update" or "increment"`)

	// ErrInvalidOrientation is returned for an unknown degree orientation.
	ErrInvalidOrientation = errors.New(`orientation must be one of "undirected", "in" or "out"`)

	// ErrIndexNotCreated is returned when SHOW INDEX INFO does not list an index after creation.
	ErrIndexNotCreated = errors.New("index not added")

	// ErrNoRows is returned when an aggregate query unexpectedly yields nothing.
	ErrNoRows = errors.New("query returned no rows")
)

// Row is a single result row keyed by the names declared in the RETURN clause.
type Row map[string]any

// Result is the raw outcome of running one statement.
type Result struct {
	Keys    []string
	Records []*db.Record
}

// Executor runs a single statement on the database.
// MemgraphDriver builds statements and reshapes results; the Executor owns
// the connection.
type Executor interface {
	Execute(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) (*Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// OnDuplicate selects how WriteEdges treats a relationship that already exists.
type OnDuplicate string

const (
	// OnDuplicateUpdate overwrites the listed attributes on the existing relationship.
	OnDuplicateUpdate OnDuplicate = "update"
	// OnDuplicateIncrement bumps r.weight on the existing relationship.
	OnDuplicateIncrement OnDuplicate = "increment"
)

// Orientation selects which relationships count toward a node's degree.
type Orientation string

const (
	Undirected Orientation = "undirected"
	Incoming   Orientation = "in"
	Outgoing   Orientation = "out"
)

// ParseOrientation converts a user supplied string, case-insensitively.
// The empty string means Undirected.
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Undirected, nil
	case Undirected, Incoming, Outgoing:
		return o, nil
	default:
		return "", ErrInvalidOrientation
	}
}

// NodeWriteOptions controls WriteNodes.
type NodeWriteOptions struct {
	// IDKey is the record key holding the id value. Defaults to the id property name.
	IDKey string
	// Attributes restricts the written keys to IDKey plus this list.
	// A nil slice keeps every key of each record; an empty, non-nil slice
	// writes only IDKey. Callers that want id-only nodes must pass
	// []string{} explicitly, since the zero value writes everything.
	Attributes []string
	// Update also overwrites properties of nodes that already exist.
	Update bool
	// ChunkSize is the number of records sent per statement.
	ChunkSize int
	// CustomQuery replaces the generated statement. It receives $node_list.
	CustomQuery string
	// SkipChunks skips the first n chunks, used to resume an interrupted import.
	SkipChunks int
	// OnChunkWritten is called after each chunk commits with the chunk index.
	OnChunkWritten func(chunk int) error
}

// EdgeWriteOptions controls WriteEdges.
// Each edge record carries "source" and "target" keys holding node ids.
type EdgeWriteOptions struct {
	SourceIDProperty string
	TargetIDProperty string
	// Attributes are copied from the record onto the relationship.
	Attributes  []string
	ChunkSize   int
	CustomQuery string
	OnDuplicate OnDuplicate

	SkipChunks     int
	OnChunkWritten func(chunk int) error
}

// DuplicateOptions controls WipeDuplicateRelationships.
type DuplicateOptions struct {
	// SourceLabel restricts the start node label.
	SourceLabel string
	// SourceProperties restricts the start node to these property values.
	SourceProperties map[string]any
	BatchSize        int
}

// DegreeOptions controls SetDegree.
type DegreeOptions struct {
	RelLabel    string
	TargetLabel string
	Where       string
	SetProperty string
	Orientation Orientation
}
