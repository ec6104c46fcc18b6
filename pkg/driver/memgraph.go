package driver

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/soundprediction/minigraph/pkg/utils"
)

// BoltExecutor opens a fresh Bolt connection for every statement, runs it as
// an auto-commit transaction and closes the connection again.
type BoltExecutor struct {
	uri         string
	username    string
	password    string
	database    string
	configurers []func(*neo4j.Config)
}

// NewBoltExecutor validates the target and returns an executor for it.
// Memgraph accepts empty credentials; database may be empty.
func NewBoltExecutor(uri, username, password, database string, configurers ...func(*neo4j.Config)) (*BoltExecutor, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid memgraph uri %q: %w", uri, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid memgraph uri %q: expected scheme://host:port", uri)
	}
	return &BoltExecutor{
		uri:         uri,
		username:    username,
		password:    password,
		database:    database,
		configurers: configurers,
	}, nil
}

func (b *BoltExecutor) connect() (neo4j.DriverWithContext, error) {
	client, err := neo4j.NewDriverWithContext(b.uri, neo4j.BasicAuth(b.username, b.password, ""), b.configurers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create memgraph driver: %w", err)
	}
	return client, nil
}

// Execute implements Executor.
func (b *BoltExecutor) Execute(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) (*Result, error) {
	client, err := b.connect()
	if err != nil {
		return nil, err
	}
	defer client.Close(ctx)

	session := client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: b.database, AccessMode: mode})
	defer session.Close(ctx)

	res, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	keys, err := res.Keys()
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Keys: keys, Records: records}, nil
}

// VerifyConnectivity implements Executor.
func (b *BoltExecutor) VerifyConnectivity(ctx context.Context) error {
	client, err := b.connect()
	if err != nil {
		return err
	}
	defer client.Close(ctx)
	return client.VerifyConnectivity(ctx)
}

// Close implements Executor. Connections never outlive a statement, so
// there is nothing to release.
func (b *BoltExecutor) Close(ctx context.Context) error {
	return nil
}

func (b *BoltExecutor) String() string {
	password := ""
	if b.password != "" {
		password = "***"
	}
	return fmt.Sprintf("uri='%s', user='%s', password='%s'", b.uri, b.username, password)
}

// MemgraphDriver templates the helper statements and reshapes their results.
type MemgraphDriver struct {
	executor Executor
	logger   *slog.Logger
}

// NewMemgraphDriver creates a driver talking Bolt to uri.
func NewMemgraphDriver(uri, username, password, database string) (*MemgraphDriver, error) {
	executor, err := NewBoltExecutor(uri, username, password, database)
	if err != nil {
		return nil, err
	}
	return NewMemgraphDriverWithExecutor(executor), nil
}

// NewMemgraphDriverWithExecutor creates a driver on top of any Executor,
// typically a BoltExecutor wrapped with retry or circuit breaking.
func NewMemgraphDriverWithExecutor(executor Executor) *MemgraphDriver {
	return &MemgraphDriver{
		executor: executor,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger used for statement diagnostics.
func (m *MemgraphDriver) WithLogger(logger *slog.Logger) *MemgraphDriver {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *MemgraphDriver) String() string {
	if s, ok := m.executor.(fmt.Stringer); ok {
		return fmt.Sprintf("Memgraph(%s)", s.String())
	}
	return fmt.Sprintf("Memgraph(%T)", m.executor)
}

func paramKeys(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MemgraphDriver) run(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) ([]Row, error) {
	start := time.Now()
	res, err := m.executor.Execute(ctx, mode, query, params)
	if err != nil {
		m.logger.ErrorContext(ctx, "Query failed", "query", query, "params", paramKeys(params), "error", err)
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	if res == nil {
		return nil, nil
	}
	m.logger.DebugContext(ctx, "Query executed", "query", query, "rows", len(res.Records), "duration", time.Since(start))
	return LabelRecords(res.Records, ReturnLabels(query)), nil
}

// Read implements QueryRunner.
func (m *MemgraphDriver) Read(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	return m.run(ctx, neo4j.AccessModeRead, query, params)
}

// Write implements QueryRunner.
func (m *MemgraphDriver) Write(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	return m.run(ctx, neo4j.AccessModeWrite, query, params)
}

// SetIndex creates the index and checks SHOW INDEX INFO lists it.
func (m *MemgraphDriver) SetIndex(ctx context.Context, label, property string) error {
	query, err := IndexQuery(label, property)
	if err != nil {
		return err
	}
	if _, err := m.Write(ctx, query, nil); err != nil {
		return err
	}
	rows, err := m.Read(ctx, ShowIndexInfoQuery, nil)
	if err != nil {
		return err
	}
	if !indexPresent(rows, label, property) {
		return fmt.Errorf("%w: current indexes are %v", ErrIndexNotCreated, rows)
	}
	m.logger.InfoContext(ctx, "Index created", "label", label, "property", property)
	return nil
}

func indexPresent(rows []Row, label, property string) bool {
	for _, row := range rows {
		if l, _ := AsString(row["label"]); l != label {
			continue
		}
		if propertyMatches(row["property"], property) {
			return true
		}
	}
	return false
}

// Memgraph reports the indexed property as null, a string or, in recent
// releases, a list of strings.
func propertyMatches(v any, property string) bool {
	switch p := v.(type) {
	case nil:
		return property == ""
	case string:
		return p == property
	case []any:
		if property == "" {
			return len(p) == 0
		}
		return len(p) == 1 && p[0] == property
	case []string:
		if property == "" {
			return len(p) == 0
		}
		return len(p) == 1 && p[0] == property
	default:
		return false
	}
}

// SetConstraint creates a uniqueness constraint and returns SHOW CONSTRAINT INFO.
func (m *MemgraphDriver) SetConstraint(ctx context.Context, label, property string) ([]Row, error) {
	query, err := ConstraintQuery(label, property)
	if err != nil {
		return nil, err
	}
	if _, err := m.Write(ctx, query, nil); err != nil {
		return nil, err
	}
	return m.Read(ctx, ShowConstraintInfoQuery, nil)
}

func chunkSize(size, fallback int) int {
	if size <= 0 {
		return fallback
	}
	return size
}

// writeChunks binds each chunk of records to param and runs query once per chunk.
func (m *MemgraphDriver) writeChunks(ctx context.Context, query, param string, records []map[string]any, size, skip int, onChunk func(int) error) error {
	chunks := utils.Chunks(records, size)
	for i, chunk := range chunks {
		if i < skip {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := m.Write(ctx, query, map[string]any{param: utils.ToAnySlice(chunk)}); err != nil {
			return fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
		}
		m.logger.DebugContext(ctx, "Chunk written", "param", param, "chunk", i+1, "of", len(chunks), "records", len(chunk))
		if onChunk != nil {
			if err := onChunk(i); err != nil {
				return fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
			}
		}
	}
	return nil
}

// WriteNodes merges nodes of label on idProperty, chunk by chunk.
func (m *MemgraphDriver) WriteNodes(ctx context.Context, nodes []map[string]any, label, idProperty string, opts *NodeWriteOptions) error {
	if opts == nil {
		opts = &NodeWriteOptions{}
	}

	query := opts.CustomQuery
	records := nodes
	if query == "" {
		idKey := opts.IDKey
		if idKey == "" {
			idKey = idProperty
		}
		var err error
		query, err = WriteNodesQuery(label, idProperty, idKey, opts.Update)
		if err != nil {
			return err
		}
		if opts.Attributes != nil {
			keep := append([]string{idKey}, opts.Attributes...)
			records = make([]map[string]any, len(nodes))
			for i, node := range nodes {
				records[i] = utils.FilterRecord(node, keep, false)
			}
		}
	}

	m.logger.InfoContext(ctx, "Writing nodes", "label", label, "count", len(records))
	return m.writeChunks(ctx, query, ParamNodeList, records,
		chunkSize(opts.ChunkSize, DefaultNodeChunkSize), opts.SkipChunks, opts.OnChunkWritten)
}

// WriteEdges merges relationships between existing nodes, chunk by chunk.
func (m *MemgraphDriver) WriteEdges(ctx context.Context, edges []map[string]any, sourceLabel, edgeLabel, targetLabel string, opts *EdgeWriteOptions) error {
	if opts == nil {
		opts = &EdgeWriteOptions{}
	}

	query := opts.CustomQuery
	if query == "" {
		sourceID := opts.SourceIDProperty
		if sourceID == "" {
			sourceID = "id"
		}
		targetID := opts.TargetIDProperty
		if targetID == "" {
			targetID = "id"
		}
		var err error
		query, err = WriteEdgesQuery(sourceLabel, edgeLabel, targetLabel, sourceID, targetID, opts.Attributes, opts.OnDuplicate)
		if err != nil {
			return err
		}
	} else if opts.OnDuplicate != "" && opts.OnDuplicate != OnDuplicateUpdate && opts.OnDuplicate != OnDuplicateIncrement {
		return fmt.Errorf("%w: %q", ErrInvalidDuplicatePolicy, opts.OnDuplicate)
	}

	m.logger.InfoContext(ctx, "Writing edges", "source", sourceLabel, "type", edgeLabel, "target", targetLabel, "count", len(edges))
	return m.writeChunks(ctx, query, ParamEdgeList, edges,
		chunkSize(opts.ChunkSize, DefaultEdgeChunkSize), opts.SkipChunks, opts.OnChunkWritten)
}

// UpdateLabels adds newLabels to the nodes listed in ids ({"id": ...} records).
func (m *MemgraphDriver) UpdateLabels(ctx context.Context, ids []map[string]any, matchLabels, newLabels []string, size int) error {
	query, err := UpdateLabelsQuery(matchLabels, newLabels)
	if err != nil {
		return err
	}
	return m.writeChunks(ctx, query, ParamIDList, ids, chunkSize(size, DefaultLabelChunkSize), 0, nil)
}

// SetNodeAttr copies attrName from each row onto the node matched by idProperty.
func (m *MemgraphDriver) SetNodeAttr(ctx context.Context, rows []map[string]any, nodeLabel, idProperty, attrName string) ([]Row, error) {
	query, err := SetNodeAttrQuery(nodeLabel, idProperty, attrName)
	if err != nil {
		return nil, err
	}
	return m.Write(ctx, query, map[string]any{ParamImportData: utils.ToAnySlice(rows)})
}

// RemoveNodeAttr clears attr from every node of label and returns how many were touched.
func (m *MemgraphDriver) RemoveNodeAttr(ctx context.Context, label, attr string) (int64, error) {
	query, err := RemoveNodeAttrQuery(label, attr)
	if err != nil {
		return 0, err
	}
	rows, err := m.Write(ctx, query, nil)
	if err != nil {
		return 0, err
	}
	return FirstInt64(rows, "removed")
}

// RemoveNodeLabel strips label from all nodes.
func (m *MemgraphDriver) RemoveNodeLabel(ctx context.Context, label string) error {
	query, err := RemoveNodeLabelQuery(label)
	if err != nil {
		return err
	}
	_, err = m.Write(ctx, query, nil)
	return err
}

// LabelExists reports whether at least one node carries label.
func (m *MemgraphDriver) LabelExists(ctx context.Context, label string) (bool, error) {
	n, err := m.NodeCount(ctx, label, "")
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AttrExists reports whether some node (or relationship) of label has attr set.
// A positive searchLimit bounds how many candidates are inspected.
func (m *MemgraphDriver) AttrExists(ctx context.Context, label, attr string, edge bool, searchLimit int) (bool, error) {
	limited := searchLimit > 0
	query, err := AttrExistsQuery(label, attr, edge, limited)
	if err != nil {
		return false, err
	}
	var params map[string]any
	if limited {
		params = map[string]any{ParamLimitNum: searchLimit}
	}
	rows, err := m.Read(ctx, query, params)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// WipeRelationships deletes every relationship of type relLabel.
func (m *MemgraphDriver) WipeRelationships(ctx context.Context, relLabel string) error {
	query, err := WipeRelationshipsQuery(relLabel)
	if err != nil {
		return err
	}
	_, err = m.Write(ctx, query, nil)
	return err
}

// WipeDuplicateRelationships collapses parallel relationships of relLabel to
// one per node pair. Batches run until the relationship count stops
// changing. Returns the number of relationships deleted.
func (m *MemgraphDriver) WipeDuplicateRelationships(ctx context.Context, relLabel string, opts *DuplicateOptions) (int64, error) {
	if opts == nil {
		opts = &DuplicateOptions{}
	}
	dedupe, count, params, err := WipeDuplicateRelationshipsQuery(relLabel, *opts)
	if err != nil {
		return 0, err
	}

	rows, err := m.Read(ctx, count, params)
	if err != nil {
		return 0, err
	}
	initial, err := FirstInt64(rows, "remaining_rels")
	if err != nil {
		return 0, err
	}

	last := initial
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return initial - last, err
		}
		if _, err := m.Write(ctx, dedupe, params); err != nil {
			return initial - last, err
		}
		rows, err := m.Read(ctx, count, params)
		if err != nil {
			return initial - last, err
		}
		current, err := FirstInt64(rows, "remaining_rels")
		if err != nil {
			return initial - last, err
		}
		m.logger.DebugContext(ctx, "Duplicate batch removed", "type", relLabel, "iteration", iteration, "remaining", current)
		if current == last {
			break
		}
		last = current
	}

	m.logger.InfoContext(ctx, "Duplicate relationships removed", "type", relLabel, "removed", initial-last)
	return initial - last, nil
}

// NodeCount counts nodes of label matching the optional where filter.
func (m *MemgraphDriver) NodeCount(ctx context.Context, label, where string) (int64, error) {
	query, err := NodeCountQuery(label, where)
	if err != nil {
		return 0, err
	}
	rows, err := m.Read(ctx, query, nil)
	if err != nil {
		return 0, err
	}
	return FirstInt64(rows, "n_nodes")
}

// AttrMinimum returns min(attr) over label; nil when no node has attr.
func (m *MemgraphDriver) AttrMinimum(ctx context.Context, label, attr, where string) (any, error) {
	query, err := AttrMinimumQuery(label, attr, where)
	if err != nil {
		return nil, err
	}
	return m.readValue(ctx, query)
}

// AttrMaximum returns max(attr) over label; nil when no node has attr.
func (m *MemgraphDriver) AttrMaximum(ctx context.Context, label, attr, where string) (any, error) {
	query, err := AttrMaximumQuery(label, attr, where)
	if err != nil {
		return nil, err
	}
	return m.readValue(ctx, query)
}

func (m *MemgraphDriver) readValue(ctx context.Context, query string) (any, error) {
	rows, err := m.Read(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	return FirstValue(rows, "value")
}

// SetDegree writes each node's degree to a property and returns the number of nodes updated.
func (m *MemgraphDriver) SetDegree(ctx context.Context, nodeLabel string, opts *DegreeOptions) (int64, error) {
	if opts == nil {
		opts = &DegreeOptions{}
	}
	query, err := DegreeQuery(nodeLabel, *opts)
	if err != nil {
		return 0, err
	}
	rows, err := m.Write(ctx, query, nil)
	if err != nil {
		return 0, err
	}
	return FirstInt64(rows, "total_nodes")
}

// VerifyConnectivity checks the database is reachable.
func (m *MemgraphDriver) VerifyConnectivity(ctx context.Context) error {
	return m.executor.VerifyConnectivity(ctx)
}

// Close releases the executor.
func (m *MemgraphDriver) Close() error {
	return m.executor.Close(context.Background())
}
