package dto

import (
	"errors"
	"strings"
)

// WriteNodesRequest merges nodes of one label
type WriteNodesRequest struct {
	Label      string `json:"label" binding:"required"`
	IDProperty string `json:"id_property,omitempty"`
	IDKey      string `json:"id_key,omitempty"`
	// Attributes absent keeps every record key; an empty list keeps only the id.
	Attributes *[]string        `json:"attributes,omitempty"`
	Update     bool             `json:"update,omitempty"`
	ChunkSize  int              `json:"chunk_size,omitempty"`
	Nodes      []map[string]any `json:"nodes" binding:"required"`
}

// Validate performs validation on WriteNodesRequest
func (r *WriteNodesRequest) Validate() error {
	if strings.TrimSpace(r.Label) == "" {
		return ErrEmptyLabel
	}
	if r.ChunkSize < 0 {
		return errors.New("chunk_size cannot be negative")
	}
	return checkRecords(len(r.Nodes))
}

// WriteEdgesRequest merges relationships between existing nodes
type WriteEdgesRequest struct {
	SourceLabel      string           `json:"source_label" binding:"required"`
	EdgeLabel        string           `json:"edge_label" binding:"required"`
	TargetLabel      string           `json:"target_label" binding:"required"`
	SourceIDProperty string           `json:"source_id_property,omitempty"`
	TargetIDProperty string           `json:"target_id_property,omitempty"`
	Attributes       []string         `json:"attributes,omitempty"`
	OnDuplicate      string           `json:"on_duplicate,omitempty"`
	ChunkSize        int              `json:"chunk_size,omitempty"`
	Edges            []map[string]any `json:"edges" binding:"required"`
}

// Validate performs validation on WriteEdgesRequest
func (r *WriteEdgesRequest) Validate() error {
	if strings.TrimSpace(r.SourceLabel) == "" || strings.TrimSpace(r.TargetLabel) == "" {
		return ErrEmptyLabel
	}
	if strings.TrimSpace(r.EdgeLabel) == "" {
		return errors.New("edge_label cannot be empty")
	}
	if r.ChunkSize < 0 {
		return errors.New("chunk_size cannot be negative")
	}
	return checkRecords(len(r.Edges))
}

// UpdateLabelsRequest adds labels to nodes matched by id
type UpdateLabelsRequest struct {
	MatchLabels []string `json:"match_labels" binding:"required"`
	NewLabels   []string `json:"new_labels" binding:"required"`
	IDs         []any    `json:"ids" binding:"required"`
	ChunkSize   int      `json:"chunk_size,omitempty"`
}

// Validate performs validation on UpdateLabelsRequest
func (r *UpdateLabelsRequest) Validate() error {
	if len(r.MatchLabels) == 0 || len(r.NewLabels) == 0 {
		return ErrEmptyLabel
	}
	return checkRecords(len(r.IDs))
}

// Records wraps each id as {"id": id}.
func (r *UpdateLabelsRequest) Records() []map[string]any {
	out := make([]map[string]any, len(r.IDs))
	for i, id := range r.IDs {
		out[i] = map[string]any{"id": id}
	}
	return out
}

// SetAttrRequest copies one attribute from rows onto matched nodes
type SetAttrRequest struct {
	Label      string           `json:"label" binding:"required"`
	IDProperty string           `json:"id_property,omitempty"`
	Attr       string           `json:"attr" binding:"required"`
	Rows       []map[string]any `json:"rows" binding:"required"`
}

// Validate performs validation on SetAttrRequest
func (r *SetAttrRequest) Validate() error {
	if strings.TrimSpace(r.Label) == "" {
		return ErrEmptyLabel
	}
	if strings.TrimSpace(r.Attr) == "" {
		return ErrEmptyProperty
	}
	return checkRecords(len(r.Rows))
}

// IndexRequest creates an index or a uniqueness constraint
type IndexRequest struct {
	Label    string `json:"label" binding:"required"`
	Property string `json:"property,omitempty"`
}

// Validate performs validation on IndexRequest
func (r *IndexRequest) Validate() error {
	if strings.TrimSpace(r.Label) == "" {
		return ErrEmptyLabel
	}
	return nil
}

// DegreeRequest stores node degrees on a property
type DegreeRequest struct {
	Label       string `json:"label" binding:"required"`
	RelLabel    string `json:"rel_label,omitempty"`
	TargetLabel string `json:"target_label,omitempty"`
	Where       string `json:"where,omitempty"`
	SetProperty string `json:"set_property,omitempty"`
	Orientation string `json:"orientation,omitempty"`
}

// Validate performs validation on DegreeRequest
func (r *DegreeRequest) Validate() error {
	if strings.TrimSpace(r.Label) == "" {
		return ErrEmptyLabel
	}
	return nil
}

// DuplicatesRequest narrows duplicate cleanup to matching source nodes
type DuplicatesRequest struct {
	SourceLabel      string         `json:"source_label,omitempty"`
	SourceProperties map[string]any `json:"source_properties,omitempty"`
	BatchSize        int            `json:"batch_size,omitempty"`
}

// RangeResponse carries an attribute's extremes
type RangeResponse struct {
	Min any `json:"min"`
	Max any `json:"max"`
}
