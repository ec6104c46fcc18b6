package driver

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
)

func TestReturnLabels(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"no return", "MATCH (n:Stale) REMOVE n:Stale", nil},
		{"aliased", "MATCH (n:Person) RETURN count(n) AS n_nodes", []string{"n_nodes"}},
		{"several items", "MATCH (n) RETURN n.id AS id, n.name AS name, n", []string{"id", "name", "n"}},
		{"order and limit", "MATCH (n) RETURN n.id AS id ORDER BY id LIMIT 10", []string{"id"}},
		{"limit only", "MATCH (n:Person) WHERE n.email IS NOT NULL RETURN n LIMIT 1", []string{"n"}},
		{"skip", "MATCH (n) RETURN n.id AS id SKIP 5", []string{"id"}},
		{"unaliased function", "MATCH (n) RETURN count(n)", []string{"count(n)"}},
		{"nested commas", "MATCH (n) RETURN coalesce(n.a, n.b) AS v, [x IN [1, 2] | x] AS xs", []string{"v", "xs"}},
		{"distinct", "MATCH (n) RETURN DISTINCT n.kind AS kind", []string{"kind"}},
		{"trailing semicolon", "MATCH (n) RETURN n.id AS id;", []string{"id"}},
		{"empty projection", "MATCH (n) RETURN ", nil},
		{"keyword inside relationship type", "MATCH (c)-[:RETURNED]->(p) RETURN p.name", []string{"p.name"}},
		{"keyword prefix in type", "MATCH (a)-[:RETURNS_TO]->(b) RETURN a.id AS src, b.id AS dst", []string{"src", "dst"}},
		{"keyword inside property", "MATCH (n) RETURN n.SKIPPED AS skipped", []string{"skipped"}},
		{"limit inside property", "MATCH (n) WHERE n.LIMITED RETURN n.LIMIT_VALUE LIMIT 3", []string{"n.LIMIT_VALUE"}},
		{"lowercase keywords", "match (n) return n.id as id order by id", []string{"id"}},
		{"newline before return", "MATCH (n)\nRETURN n.id AS id", []string{"id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReturnLabels(tt.query))
		})
	}
}

func TestUnpackValue(t *testing.T) {
	node := dbtype.Node{Id: 1, Labels: []string{"Person"}, Props: map[string]any{"id": int64(7)}}
	rel := dbtype.Relationship{Id: 2, Type: "KNOWS", Props: map[string]any{"weight": int64(3)}}

	assert.Equal(t, map[string]any{"id": int64(7)}, UnpackValue(node))
	assert.Equal(t, map[string]any{"weight": int64(3)}, UnpackValue(rel))
	assert.Equal(t, "plain", UnpackValue("plain"))
	assert.Nil(t, UnpackValue(nil))
}

func TestLabelRecords(t *testing.T) {
	node := dbtype.Node{Props: map[string]any{"name": "ada"}}

	t.Run("labels from the query", func(t *testing.T) {
		records := []*db.Record{
			{Keys: []string{"n", "count(r)"}, Values: []any{node, int64(2)}},
		}
		rows := LabelRecords(records, []string{"person", "rels"})
		assert.Equal(t, []Row{{"person": map[string]any{"name": "ada"}, "rels": int64(2)}}, rows)
	})

	t.Run("falls back to record keys", func(t *testing.T) {
		records := []*db.Record{
			{Keys: []string{"index type", "label", "property", "count"}, Values: []any{"label+property", "Person", "id", int64(3)}},
		}
		rows := LabelRecords(records, nil)
		assert.Equal(t, "Person", rows[0]["label"])
		assert.Equal(t, int64(3), rows[0]["count"])

		rows = LabelRecords(records, []string{"only_one"})
		assert.Equal(t, "id", rows[0]["property"])
	})

	t.Run("empty result is nil", func(t *testing.T) {
		assert.Nil(t, LabelRecords(nil, []string{"x"}))
		assert.Nil(t, LabelRecords([]*db.Record{}, nil))
	})
}
