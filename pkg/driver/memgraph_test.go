package driver_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/soundprediction/minigraph/pkg/driver"
	"github.com/soundprediction/minigraph/pkg/driver/drivertest"
	"github.com/soundprediction/minigraph/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDriver() (*driver.MemgraphDriver, *drivertest.Executor) {
	exec := drivertest.New()
	return driver.NewMemgraphDriverWithExecutor(exec), exec
}

func people(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"id": i, "name": fmt.Sprintf("p%d", i), "age": 20 + i}
	}
	return out
}

func TestMemgraphDriver_ReadLabelsRows(t *testing.T) {
	d, exec := newMockDriver()
	exec.Enqueue(drivertest.Rows([]string{"id", "name"}, []any{int64(1), "ada"}, []any{int64(2), "bob"}), nil)

	rows, err := d.Read(context.Background(), "MATCH (n:Person) RETURN n.id AS id, n.name AS name", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, []driver.Row{{"id": int64(1), "name": "ada"}, {"id": int64(2), "name": "bob"}}, rows)

	calls := exec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, neo4j.AccessModeRead, calls[0].Mode)
	assert.Equal(t, map[string]any{"x": 1}, calls[0].Params)
}

func TestMemgraphDriver_ReadKeywordLikeIdentifiers(t *testing.T) {
	d, exec := newMockDriver()
	exec.Enqueue(drivertest.Rows([]string{"p.name"}, []any{"x"}), nil)
	exec.Enqueue(drivertest.Rows([]string{"skipped"}, []any{"x"}), nil)

	rows, err := d.Read(context.Background(), "MATCH (c)-[:RETURNED]->(p) RETURN p.name", nil)
	require.NoError(t, err)
	assert.Equal(t, []driver.Row{{"p.name": "x"}}, rows)

	rows, err = d.Read(context.Background(), "MATCH (n) RETURN n.SKIPPED AS skipped", nil)
	require.NoError(t, err)
	assert.Equal(t, []driver.Row{{"skipped": "x"}}, rows)
}

func TestMemgraphDriver_FailureTelemetry(t *testing.T) {
	dir := t.TempDir()
	h, err := telemetry.NewParquetHandler(slog.NewTextHandler(io.Discard, nil), dir, 100)
	require.NoError(t, err)

	d, exec := newMockDriver()
	d.WithLogger(slog.New(h))
	exec.Enqueue(nil, errors.New("connection reset"))

	ctx := telemetry.WithValue(context.Background(), telemetry.ContextKeyJobID, "job-42")
	ctx = telemetry.WithValue(ctx, telemetry.ContextKeyCommand, "minigraph nodes")
	_, err = d.Write(ctx, "UNWIND $node_list AS n MERGE (:Person {id: n.id})", nil)
	require.Error(t, err)
	require.NoError(t, h.Flush())

	logs, err := telemetry.ReadLogs(dir)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Query failed", logs[0].Message)
	assert.Equal(t, "job-42", logs[0].JobID)
	assert.Equal(t, "minigraph nodes", logs[0].Command)
}

func TestMemgraphDriver_WriteWithoutRows(t *testing.T) {
	d, exec := newMockDriver()

	rows, err := d.Write(context.Background(), "MATCH (n:Stale) REMOVE n:Stale", nil)
	require.NoError(t, err)
	assert.Nil(t, rows)
	assert.Equal(t, neo4j.AccessModeWrite, exec.Calls()[0].Mode)
}

func TestMemgraphDriver_ErrorsPassThrough(t *testing.T) {
	d, exec := newMockDriver()
	dbErr := errors.New("Neo.ClientError.Statement.SyntaxError")
	exec.Enqueue(nil, dbErr)

	_, err := d.Write(context.Background(), "BROKEN", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
}

func TestMemgraphDriver_WriteNodes(t *testing.T) {
	ctx := context.Background()

	t.Run("chunks records", func(t *testing.T) {
		d, exec := newMockDriver()
		err := d.WriteNodes(ctx, people(5), "Person", "id", &driver.NodeWriteOptions{ChunkSize: 2})
		require.NoError(t, err)

		calls := exec.Calls()
		require.Len(t, calls, 3)
		for _, c := range calls {
			assert.Equal(t, "UNWIND $node_list AS row MERGE (n:Person {id:row.id}) ON CREATE SET n += row", c.Query)
			assert.Equal(t, neo4j.AccessModeWrite, c.Mode)
		}
		assert.Len(t, calls[0].Params[driver.ParamNodeList], 2)
		assert.Len(t, calls[2].Params[driver.ParamNodeList], 1)
	})

	t.Run("nil options keep every attribute", func(t *testing.T) {
		d, exec := newMockDriver()
		require.NoError(t, d.WriteNodes(ctx, people(1), "Person", "id", nil))

		batch := exec.Calls()[0].Params[driver.ParamNodeList].([]any)
		assert.Equal(t, map[string]any{"id": 0, "name": "p0", "age": 20}, batch[0])
	})

	t.Run("attribute list filters records", func(t *testing.T) {
		d, exec := newMockDriver()
		err := d.WriteNodes(ctx, people(1), "Person", "id", &driver.NodeWriteOptions{Attributes: []string{"name"}, Update: true})
		require.NoError(t, err)

		call := exec.Calls()[0]
		assert.Equal(t, "UNWIND $node_list AS row MERGE (n:Person {id:row.id}) ON CREATE SET n += row ON MATCH SET n += row", call.Query)
		batch := call.Params[driver.ParamNodeList].([]any)
		assert.Equal(t, map[string]any{"id": 0, "name": "p0"}, batch[0])
	})

	t.Run("empty attribute list keeps only the id", func(t *testing.T) {
		d, exec := newMockDriver()
		nodes := []map[string]any{{"key": "k1", "name": "x"}}
		err := d.WriteNodes(ctx, nodes, "Thing", "uid", &driver.NodeWriteOptions{IDKey: "key", Attributes: []string{}})
		require.NoError(t, err)

		call := exec.Calls()[0]
		assert.Equal(t, "UNWIND $node_list AS row MERGE (n:Thing {uid:row.key}) ON CREATE SET n += row", call.Query)
		assert.Equal(t, []any{map[string]any{"key": "k1"}}, call.Params[driver.ParamNodeList])
	})

	t.Run("custom query bypasses templating", func(t *testing.T) {
		d, exec := newMockDriver()
		custom := "UNWIND $node_list AS row CREATE (n:Raw) SET n = row"
		err := d.WriteNodes(ctx, people(3), "ignored label!", "id", &driver.NodeWriteOptions{CustomQuery: custom})
		require.NoError(t, err)
		assert.Equal(t, []string{custom}, exec.Queries())
	})

	t.Run("empty input writes nothing", func(t *testing.T) {
		d, exec := newMockDriver()
		require.NoError(t, d.WriteNodes(ctx, nil, "Person", "id", nil))
		assert.Empty(t, exec.Calls())
	})

	t.Run("invalid label fails before any write", func(t *testing.T) {
		d, exec := newMockDriver()
		err := d.WriteNodes(ctx, people(2), "Person) DETACH DELETE (x", "id", nil)
		assert.ErrorIs(t, err, driver.ErrInvalidIdentifier)
		assert.Empty(t, exec.Calls())
	})

	t.Run("resume skips committed chunks and reports progress", func(t *testing.T) {
		d, exec := newMockDriver()
		var done []int
		err := d.WriteNodes(ctx, people(6), "Person", "id", &driver.NodeWriteOptions{
			ChunkSize:  2,
			SkipChunks: 1,
			OnChunkWritten: func(chunk int) error {
				done = append(done, chunk)
				return nil
			},
		})
		require.NoError(t, err)
		assert.Len(t, exec.Calls(), 2)
		assert.Equal(t, []int{1, 2}, done)
	})

	t.Run("failing chunk stops the import", func(t *testing.T) {
		d, exec := newMockDriver()
		exec.Enqueue(&driver.Result{}, nil).Enqueue(nil, errors.New("connection reset"))
		err := d.WriteNodes(ctx, people(6), "Person", "id", &driver.NodeWriteOptions{ChunkSize: 2})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chunk 2 of 3")
		assert.Len(t, exec.Calls(), 2)
	})
}

func TestMemgraphDriver_WriteEdges(t *testing.T) {
	ctx := context.Background()
	edges := []map[string]any{
		{"source": 1, "target": 2, "since": 2020},
		{"source": 2, "target": 3, "since": 2021},
		{"source": 3, "target": 1, "since": 2022},
	}

	t.Run("increment policy", func(t *testing.T) {
		d, exec := newMockDriver()
		err := d.WriteEdges(ctx, edges, "Person", "KNOWS", "Person", &driver.EdgeWriteOptions{
			Attributes:  []string{"since"},
			OnDuplicate: driver.OnDuplicateIncrement,
			ChunkSize:   2,
		})
		require.NoError(t, err)

		calls := exec.Calls()
		require.Len(t, calls, 2)
		assert.Equal(t, "UNWIND $edge_list AS row MATCH (s:Person {id:row.source}), (t:Person {id:row.target}) "+
			"MERGE (s)-[r:KNOWS]->(t) ON CREATE SET r.since = row.since, r.weight = 1 ON MATCH SET r.weight = r.weight + 1", calls[0].Query)
		assert.Len(t, calls[1].Params[driver.ParamEdgeList], 1)
	})

	t.Run("invalid policy fails before any write", func(t *testing.T) {
		d, exec := newMockDriver()
		err := d.WriteEdges(ctx, edges, "Person", "KNOWS", "Person", &driver.EdgeWriteOptions{OnDuplicate: "merge"})
		assert.ErrorIs(t, err, driver.ErrInvalidDuplicatePolicy)
		assert.Empty(t, exec.Calls())

		err = d.WriteEdges(ctx, edges, "Person", "KNOWS", "Person", &driver.EdgeWriteOptions{OnDuplicate: "merge", CustomQuery: "X"})
		assert.ErrorIs(t, err, driver.ErrInvalidDuplicatePolicy)
		assert.Empty(t, exec.Calls())
	})
}

func TestMemgraphDriver_UpdateLabelsAndAttrs(t *testing.T) {
	ctx := context.Background()
	d, exec := newMockDriver()

	ids := []map[string]any{{"id": 1}, {"id": 2}, {"id": 3}}
	require.NoError(t, d.UpdateLabels(ctx, ids, []string{"person"}, []string{"author", "active"}, 2))

	_, err := d.SetNodeAttr(ctx, []map[string]any{{"id": 1, "score": 0.5}}, "Person", "id", "score")
	require.NoError(t, err)

	queries := exec.Queries()
	require.Len(t, queries, 3)
	assert.Equal(t, "UNWIND $id_list AS row MATCH (n:PERSON) WHERE n.id = row.id SET n:AUTHOR:ACTIVE", queries[0])
	assert.Equal(t, "UNWIND $import_data AS row MATCH (n:Person) WHERE n.id = row.id SET n.score = row.score", queries[2])
	assert.Equal(t, []any{map[string]any{"id": 1, "score": 0.5}}, exec.Calls()[2].Params[driver.ParamImportData])
}

func TestMemgraphDriver_RemoveNodeAttr(t *testing.T) {
	d, exec := newMockDriver()
	exec.Enqueue(drivertest.Value("removed", int64(4)), nil)

	n, err := d.RemoveNodeAttr(context.Background(), "Person", "score")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestMemgraphDriver_CountsAndExistence(t *testing.T) {
	ctx := context.Background()

	t.Run("node count", func(t *testing.T) {
		d, exec := newMockDriver()
		exec.Enqueue(drivertest.Value("n_nodes", int64(42)), nil)

		n, err := d.NodeCount(ctx, "Person", "n.age > 30")
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
		assert.Equal(t, "MATCH (n:Person) WHERE n.age > 30 RETURN count(n) AS n_nodes", exec.Queries()[0])
	})

	t.Run("label exists", func(t *testing.T) {
		d, exec := newMockDriver()
		exec.Enqueue(drivertest.Value("n_nodes", int64(0)), nil).Enqueue(drivertest.Value("n_nodes", int64(3)), nil)

		ok, err := d.LabelExists(ctx, "Ghost")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = d.LabelExists(ctx, "Person")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("attr exists with limit", func(t *testing.T) {
		d, exec := newMockDriver()
		exec.Enqueue(drivertest.Value("n", map[string]any{"email": "a@b"}), nil)

		ok, err := d.AttrExists(ctx, "Person", "email", false, 100)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, map[string]any{driver.ParamLimitNum: 100}, exec.Calls()[0].Params)
	})

	t.Run("attr missing without limit", func(t *testing.T) {
		d, exec := newMockDriver()

		ok, err := d.AttrExists(ctx, "KNOWS", "since", true, 0)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, exec.Calls()[0].Params)
		assert.Equal(t, "MATCH ()-[r:KNOWS]-() WHERE r.since IS NOT NULL RETURN r LIMIT 1", exec.Queries()[0])
	})

	t.Run("attr extremes", func(t *testing.T) {
		d, exec := newMockDriver()
		exec.Enqueue(drivertest.Value("value", int64(18)), nil).Enqueue(drivertest.Value("value", nil), nil)

		v, err := d.AttrMinimum(ctx, "Person", "age", "")
		require.NoError(t, err)
		assert.Equal(t, int64(18), v)

		v, err = d.AttrMaximum(ctx, "Person", "age", "n.age IS NOT NULL")
		require.NoError(t, err)
		assert.Nil(t, v)
		assert.Equal(t, "MATCH (n:Person) WHERE n.age IS NOT NULL RETURN max(n.age) AS value", exec.Queries()[1])
	})
}

func TestMemgraphDriver_SetDegree(t *testing.T) {
	d, exec := newMockDriver()
	exec.Enqueue(drivertest.Value("total_nodes", int64(10)), nil)

	n, err := d.SetDegree(context.Background(), "Paper", &driver.DegreeOptions{RelLabel: "CITES", Orientation: driver.Incoming})
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	call := exec.Calls()[0]
	assert.Equal(t, neo4j.AccessModeWrite, call.Mode)
	assert.Equal(t, "MATCH (s:Paper)<-[r:CITES]-(t:Paper) WITH s, count(r) AS deg SET s.in_degree = deg RETURN count(s) AS total_nodes", call.Query)

	_, err = d.SetDegree(context.Background(), "Paper", &driver.DegreeOptions{Orientation: "both"})
	assert.ErrorIs(t, err, driver.ErrInvalidOrientation)
}

func TestMemgraphDriver_WipeDuplicateRelationships(t *testing.T) {
	d, exec := newMockDriver()
	// Count before, then (write, count) pairs until the count settles.
	exec.Enqueue(drivertest.Value("remaining_rels", int64(30)), nil).
		Enqueue(drivertest.Value("freq", int64(1)), nil).
		Enqueue(drivertest.Value("remaining_rels", int64(20)), nil).
		Enqueue(drivertest.Value("freq", int64(1)), nil).
		Enqueue(drivertest.Value("remaining_rels", int64(12)), nil).
		Enqueue(nil, nil).
		Enqueue(drivertest.Value("remaining_rels", int64(12)), nil)

	removed, err := d.WipeDuplicateRelationships(context.Background(), "knows", &driver.DuplicateOptions{BatchSize: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(18), removed)

	calls := exec.Calls()
	require.Len(t, calls, 7)
	assert.Equal(t, neo4j.AccessModeRead, calls[0].Mode)
	assert.Equal(t, neo4j.AccessModeWrite, calls[1].Mode)
	assert.Contains(t, calls[1].Query, "FOREACH (r IN TAIL(rr) | DELETE r)")
	assert.Equal(t, 5, calls[1].Params[driver.ParamBatchSize])
}

func TestMemgraphDriver_WipeRelationships(t *testing.T) {
	d, exec := newMockDriver()
	require.NoError(t, d.WipeRelationships(context.Background(), "KNOWS"))
	require.NoError(t, d.RemoveNodeLabel(context.Background(), "Stale"))
	assert.Equal(t, []string{"MATCH ()-[r:KNOWS]->() DELETE r", "MATCH (n:Stale) REMOVE n:Stale"}, exec.Queries())
}

func TestMemgraphDriver_SetIndex(t *testing.T) {
	ctx := context.Background()
	indexKeys := []string{"index type", "label", "property", "count"}

	t.Run("verified", func(t *testing.T) {
		d, exec := newMockDriver()
		exec.Enqueue(nil, nil).Enqueue(drivertest.Rows(indexKeys,
			[]any{"label", "Person", nil, int64(5)},
			[]any{"label+property", "Person", "id", int64(5)},
		), nil)

		require.NoError(t, d.SetIndex(ctx, "Person", "id"))
		assert.Equal(t, []string{"CREATE INDEX ON :Person(id);", driver.ShowIndexInfoQuery}, exec.Queries())
	})

	t.Run("label index with list properties", func(t *testing.T) {
		d, exec := newMockDriver()
		exec.Enqueue(nil, nil).Enqueue(drivertest.Rows(indexKeys,
			[]any{"label", "Person", []any{}, int64(5)},
		), nil)
		require.NoError(t, d.SetIndex(ctx, "Person", ""))
	})

	t.Run("missing", func(t *testing.T) {
		d, exec := newMockDriver()
		exec.Enqueue(nil, nil).Enqueue(drivertest.Rows(indexKeys,
			[]any{"label+property", "Paper", "id", int64(5)},
		), nil)

		err := d.SetIndex(ctx, "Person", "id")
		assert.ErrorIs(t, err, driver.ErrIndexNotCreated)
	})
}

func TestMemgraphDriver_SetConstraint(t *testing.T) {
	d, exec := newMockDriver()
	exec.Enqueue(nil, nil).Enqueue(drivertest.Rows([]string{"constraint type", "label", "properties"},
		[]any{"unique", "Person", []any{"id"}},
	), nil)

	rows, err := d.SetConstraint(context.Background(), "Person", "id")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "unique", rows[0]["constraint type"])
	assert.Equal(t, "CREATE CONSTRAINT ON (n:Person) ASSERT n.id IS UNIQUE", exec.Queries()[0])
}

func TestMemgraphDriver_ContextCancelled(t *testing.T) {
	d, exec := newMockDriver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.WriteNodes(ctx, people(4), "Person", "id", &driver.NodeWriteOptions{ChunkSize: 2})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, exec.Calls())
}

func TestMemgraphDriver_CloseAndString(t *testing.T) {
	d, exec := newMockDriver()
	require.NoError(t, d.Close())
	assert.True(t, exec.Closed())
	assert.Contains(t, d.String(), "Memgraph(")

	bolt, err := driver.NewMemgraphDriver("bolt://localhost:7687", "admin", "secret", "")
	require.NoError(t, err)
	assert.Equal(t, "Memgraph(uri='bolt://localhost:7687', user='admin', password='***')", bolt.String())
}

func TestNewMemgraphDriver_InvalidURI(t *testing.T) {
	for _, uri := range []string{"", "localhost", "://nope"} {
		_, err := driver.NewMemgraphDriver(uri, "", "", "")
		assert.Error(t, err, uri)
	}
}

// getMemgraphConnectionInfo returns connection info from environment or defaults
// Set MEMGRAPH_URI, MEMGRAPH_USER, MEMGRAPH_PASSWORD env vars to override
func getMemgraphConnectionInfo() (uri, user, password string) {
	uri = os.Getenv("MEMGRAPH_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	return uri, os.Getenv("MEMGRAPH_USER"), os.Getenv("MEMGRAPH_PASSWORD")
}

// skipIfMemgraphUnavailable skips the test if Memgraph is not available
func skipIfMemgraphUnavailable(t *testing.T) *driver.MemgraphDriver {
	t.Helper()

	uri, user, password := getMemgraphConnectionInfo()
	d, err := driver.NewMemgraphDriver(uri, user, password, "")
	if err != nil {
		t.Skipf("Memgraph not available at %s: %v", uri, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.VerifyConnectivity(ctx); err != nil {
		t.Skipf("Memgraph connection failed: %v", err)
	}
	return d
}

func TestMemgraphIntegration_RoundTrip(t *testing.T) {
	d := skipIfMemgraphUnavailable(t)
	defer d.Close()

	ctx := context.Background()
	label := "MiniGraphTest" + time.Now().Format("20060102150405")
	defer d.Write(ctx, fmt.Sprintf("MATCH (n:%s) DETACH DELETE n", label), nil)

	require.NoError(t, d.WriteNodes(ctx, people(4), label, "id", &driver.NodeWriteOptions{ChunkSize: 3}))

	n, err := d.NodeCount(ctx, label, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	edges := []map[string]any{
		{"source": 0, "target": 1}, {"source": 0, "target": 1}, {"source": 1, "target": 2},
	}
	require.NoError(t, d.WriteEdges(ctx, edges, label, "LINKS", label, &driver.EdgeWriteOptions{OnDuplicate: driver.OnDuplicateIncrement}))

	rows, err := d.Read(ctx, fmt.Sprintf("MATCH (:%s {id: 0})-[r:LINKS]->(:%s {id: 1}) RETURN r.weight AS weight", label, label), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["weight"])

	updated, err := d.SetDegree(ctx, label, &driver.DegreeOptions{RelLabel: "LINKS", Orientation: driver.Outgoing})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	maxAge, err := d.AttrMaximum(ctx, label, "age", "")
	require.NoError(t, err)
	assert.Equal(t, int64(23), maxAge)
}
