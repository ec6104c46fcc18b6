package driver

import (
	"context"
)

// This file splits the Database surface into small interfaces.
// Consumers should depend on the smallest one that meets their needs.

// QueryRunner runs arbitrary statements and returns labeled rows.
type QueryRunner interface {
	// Read runs a statement in read access mode.
	Read(ctx context.Context, query string, params map[string]any) ([]Row, error)

	// Write runs a statement in write access mode.
	Write(ctx context.Context, query string, params map[string]any) ([]Row, error)
}

// SchemaManager maintains indexes and constraints.
type SchemaManager interface {
	// SetIndex creates a label or label-property index and verifies it exists.
	SetIndex(ctx context.Context, label, property string) error

	// SetConstraint creates a uniqueness constraint and returns the constraint listing.
	SetConstraint(ctx context.Context, label, property string) ([]Row, error)
}

// BulkWriter upserts nodes, relationships, labels and attributes in chunks.
type BulkWriter interface {
	WriteNodes(ctx context.Context, nodes []map[string]any, label, idProperty string, opts *NodeWriteOptions) error
	WriteEdges(ctx context.Context, edges []map[string]any, sourceLabel, edgeLabel, targetLabel string, opts *EdgeWriteOptions) error
	UpdateLabels(ctx context.Context, ids []map[string]any, matchLabels, newLabels []string, chunkSize int) error
	SetNodeAttr(ctx context.Context, rows []map[string]any, nodeLabel, idProperty, attrName string) ([]Row, error)
}

// Maintenance removes labels, attributes and relationships and derives degrees.
type Maintenance interface {
	RemoveNodeAttr(ctx context.Context, label, attr string) (int64, error)
	RemoveNodeLabel(ctx context.Context, label string) error
	WipeRelationships(ctx context.Context, relLabel string) error
	WipeDuplicateRelationships(ctx context.Context, relLabel string, opts *DuplicateOptions) (int64, error)
	SetDegree(ctx context.Context, nodeLabel string, opts *DegreeOptions) (int64, error)
}

// Inspector answers existence and aggregate questions.
type Inspector interface {
	LabelExists(ctx context.Context, label string) (bool, error)
	AttrExists(ctx context.Context, label, attr string, edge bool, searchLimit int) (bool, error)
	NodeCount(ctx context.Context, label, where string) (int64, error)
	AttrMinimum(ctx context.Context, label, attr, where string) (any, error)
	AttrMaximum(ctx context.Context, label, attr, where string) (any, error)
}

// Database is the full helper surface over a graph database.
type Database interface {
	QueryRunner
	SchemaManager
	BulkWriter
	Maintenance
	Inspector

	VerifyConnectivity(ctx context.Context) error
	Close() error
}

// Ensure MemgraphDriver implements Database.
var _ Database = (*MemgraphDriver)(nil)
