package driver

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Statements used to inspect the schema after a change.
const (
	ShowIndexInfoQuery      = "SHOW INDEX INFO"
	ShowConstraintInfoQuery = "SHOW CONSTRAINT INFO"
)

// Labels, relationship types and property names are interpolated into the
// statement text, so they are restricted to plain identifiers. Values always
// travel as parameters.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier reports whether name can be used as a label,
// relationship type or property name.
func ValidateIdentifier(kind, name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %s %q", ErrInvalidIdentifier, kind, name)
	}
	return nil
}

func validateIdentifiers(kind string, names ...string) error {
	for _, name := range names {
		if err := ValidateIdentifier(kind, name); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeWhere prefixes a filter with WHERE unless it already starts with it.
// The filter itself is raw Cypher supplied by the caller.
func NormalizeWhere(where string) string {
	where = strings.TrimSpace(where)
	if where == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToUpper(where), "WHERE ") {
		where = "WHERE " + where
	}
	return where
}

// joinClauses joins the non-empty clauses with single spaces.
func joinClauses(clauses ...string) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}

// IndexQuery builds a label index, or a label-property index when property is set.
func IndexQuery(label, property string) (string, error) {
	if err := ValidateIdentifier("label", label); err != nil {
		return "", err
	}
	if property == "" {
		return fmt.Sprintf("CREATE INDEX ON :%s;", label), nil
	}
	if err := ValidateIdentifier("property", property); err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE INDEX ON :%s(%s);", label, property), nil
}

// ConstraintQuery builds a uniqueness constraint on label.property.
func ConstraintQuery(label, property string) (string, error) {
	if err := ValidateIdentifier("label", label); err != nil {
		return "", err
	}
	if err := ValidateIdentifier("property", property); err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE CONSTRAINT ON (n:%s) ASSERT n.%s IS UNIQUE", label, property), nil
}

// WriteNodesQuery builds the node upsert. Each row of $node_list is merged on
// idProperty = row[idKey]; new nodes receive every key of the row.
func WriteNodesQuery(label, idProperty, idKey string, update bool) (string, error) {
	if err := ValidateIdentifier("label", label); err != nil {
		return "", err
	}
	if err := validateIdentifiers("property", idProperty, idKey); err != nil {
		return "", err
	}

	var onMatch string
	if update {
		onMatch = "ON MATCH SET n += row"
	}
	return joinClauses(
		"UNWIND $"+ParamNodeList+" AS row",
		fmt.Sprintf("MERGE (n:%s {%s:row.%s})", label, idProperty, idKey),
		"ON CREATE SET n += row",
		onMatch,
	), nil
}

// WriteEdgesQuery builds the relationship upsert over $edge_list. Rows carry
// the endpoint ids under "source" and "target".
func WriteEdgesQuery(sourceLabel, edgeLabel, targetLabel, sourceIDProperty, targetIDProperty string, attributes []string, mode OnDuplicate) (string, error) {
	if err := validateIdentifiers("label", sourceLabel, targetLabel); err != nil {
		return "", err
	}
	if err := ValidateIdentifier("relationship type", edgeLabel); err != nil {
		return "", err
	}
	if err := validateIdentifiers("property", sourceIDProperty, targetIDProperty); err != nil {
		return "", err
	}
	if err := validateIdentifiers("property", attributes...); err != nil {
		return "", err
	}

	assignments := make([]string, 0, len(attributes))
	for _, attr := range attributes {
		assignments = append(assignments, fmt.Sprintf("r.%s = row.%s", attr, attr))
	}
	attrStatement := strings.Join(assignments, ", ")

	var onCreate, onMatch string
	switch mode {
	case OnDuplicateUpdate, "":
		if attrStatement != "" {
			onCreate = "ON CREATE SET " + attrStatement
			onMatch = "ON MATCH SET " + attrStatement
		}
	case OnDuplicateIncrement:
		if attrStatement != "" {
			onCreate = "ON CREATE SET " + attrStatement + ", r.weight = 1"
		} else {
			onCreate = "ON CREATE SET r.weight = 1"
		}
		onMatch = "ON MATCH SET r.weight = r.weight + 1"
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDuplicatePolicy, mode)
	}

	return joinClauses(
		"UNWIND $"+ParamEdgeList+" AS row",
		fmt.Sprintf("MATCH (s:%s {%s:row.source}), (t:%s {%s:row.target})", sourceLabel, sourceIDProperty, targetLabel, targetIDProperty),
		fmt.Sprintf("MERGE (s)-[r:%s]->(t)", edgeLabel),
		onCreate,
		onMatch,
	), nil
}

func upperLabels(labels []string) (string, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("%w: empty label list", ErrInvalidIdentifier)
	}
	if err := validateIdentifiers("label", labels...); err != nil {
		return "", err
	}
	return strings.ToUpper(strings.Join(labels, ":")), nil
}

// UpdateLabelsQuery adds newLabels to the nodes carrying matchLabels whose id
// appears in $id_list. Labels are upper-cased.
func UpdateLabelsQuery(matchLabels, newLabels []string) (string, error) {
	match, err := upperLabels(matchLabels)
	if err != nil {
		return "", err
	}
	add, err := upperLabels(newLabels)
	if err != nil {
		return "", err
	}
	return joinClauses(
		"UNWIND $"+ParamIDList+" AS row",
		fmt.Sprintf("MATCH (n:%s)", match),
		"WHERE n.id = row.id",
		fmt.Sprintf("SET n:%s", add),
	), nil
}

// SetNodeAttrQuery copies row[attr] onto the node matched by row[idProperty].
func SetNodeAttrQuery(label, idProperty, attr string) (string, error) {
	if err := ValidateIdentifier("label", label); err != nil {
		return "", err
	}
	if err := validateIdentifiers("property", idProperty, attr); err != nil {
		return "", err
	}
	return joinClauses(
		"UNWIND $"+ParamImportData+" AS row",
		fmt.Sprintf("MATCH (n:%s)", label),
		fmt.Sprintf("WHERE n.%s = row.%s", idProperty, idProperty),
		fmt.Sprintf("SET n.%s = row.%s", attr, attr),
	), nil
}

// RemoveNodeAttrQuery nulls attr on every node of label and counts them.
func RemoveNodeAttrQuery(label, attr string) (string, error) {
	if err := ValidateIdentifier("label", label); err != nil {
		return "", err
	}
	if err := ValidateIdentifier("property", attr); err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (n:%s) WHERE n.%s IS NOT NULL SET n.%s = NULL RETURN count(n) AS removed", label, attr, attr), nil
}

// RemoveNodeLabelQuery strips label from every node carrying it.
func RemoveNodeLabelQuery(label string) (string, error) {
	if err := ValidateIdentifier("label", label); err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH (n:%s) REMOVE n:%s", label, label), nil
}

// AttrExistsQuery probes for one node (or relationship, when edge is set)
// of label with attr set. When limited, only the first $limit_num candidates
// are inspected.
func AttrExistsQuery(label, attr string, edge, limited bool) (string, error) {
	if err := ValidateIdentifier("label", label); err != nil {
		return "", err
	}
	if err := ValidateIdentifier("property", attr); err != nil {
		return "", err
	}

	v, pattern := "n", fmt.Sprintf("(n:%s)", label)
	if edge {
		v, pattern = "r", fmt.Sprintf("()-[r:%s]-()", label)
	}
	var limit string
	if limited {
		limit = fmt.Sprintf("WITH %s LIMIT $%s", v, ParamLimitNum)
	}
	return joinClauses(
		"MATCH "+pattern,
		limit,
		fmt.Sprintf("WHERE %s.%s IS NOT NULL", v, attr),
		fmt.Sprintf("RETURN %s LIMIT 1", v),
	), nil
}

// WipeRelationshipsQuery deletes every relationship of type relLabel.
func WipeRelationshipsQuery(relLabel string) (string, error) {
	if err := ValidateIdentifier("relationship type", relLabel); err != nil {
		return "", err
	}
	return fmt.Sprintf("MATCH ()-[r:%s]->() DELETE r", relLabel), nil
}

// sourcePattern renders the start node of the duplicate scan. Property
// filters are bound as $source_<key> parameters in key order.
func sourcePattern(label string, props map[string]any) (string, map[string]any, error) {
	params := make(map[string]any, len(props))
	var b strings.Builder
	b.WriteString("(a")
	if label != "" {
		if err := ValidateIdentifier("label", label); err != nil {
			return "", nil, err
		}
		b.WriteString(":" + label)
	}
	if len(props) > 0 {
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if err := validateIdentifiers("property", keys...); err != nil {
			return "", nil, err
		}
		filters := make([]string, 0, len(keys))
		for _, k := range keys {
			name := "source_" + k
			filters = append(filters, fmt.Sprintf("%s: $%s", k, name))
			params[name] = props[k]
		}
		b.WriteString(" {" + strings.Join(filters, ", ") + "}")
	}
	b.WriteString(")")
	return b.String(), params, nil
}

// WipeDuplicateRelationshipsQuery returns the batched statement that keeps a
// single relationship per (a, b) pair, the statement counting what remains,
// and the parameters both share. The relationship type is upper-cased.
func WipeDuplicateRelationshipsQuery(relLabel string, opts DuplicateOptions) (dedupe, count string, params map[string]any, err error) {
	if err := ValidateIdentifier("relationship type", relLabel); err != nil {
		return "", "", nil, err
	}
	src, params, err := sourcePattern(opts.SourceLabel, opts.SourceProperties)
	if err != nil {
		return "", "", nil, err
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultDuplicateBatchSize
	}
	params[ParamBatchSize] = batch

	match := fmt.Sprintf("MATCH %s-[r:%s]->(b)", src, strings.ToUpper(relLabel))
	dedupe = joinClauses(
		match,
		"WITH a, b, COLLECT(r) AS rr",
		"WHERE SIZE(rr) > 1",
		"WITH rr, count(rr) AS freq LIMIT $"+ParamBatchSize,
		"FOREACH (r IN TAIL(rr) | DELETE r)",
		"RETURN freq",
	)
	count = joinClauses(match, "RETURN count(r) AS remaining_rels")
	return dedupe, count, params, nil
}

// NodeCountQuery counts nodes of label, optionally filtered.
func NodeCountQuery(label, where string) (string, error) {
	if err := ValidateIdentifier("label", label); err != nil {
		return "", err
	}
	return joinClauses(
		fmt.Sprintf("MATCH (n:%s)", label),
		NormalizeWhere(where),
		"RETURN count(n) AS n_nodes",
	), nil
}

func attrExtremeQuery(aggregation, label, attr, where string) (string, error) {
	if err := ValidateIdentifier("label", label); err != nil {
		return "", err
	}
	if err := ValidateIdentifier("property", attr); err != nil {
		return "", err
	}
	return joinClauses(
		fmt.Sprintf("MATCH (n:%s)", label),
		NormalizeWhere(where),
		fmt.Sprintf("RETURN %s(n.%s) AS value", aggregation, attr),
	), nil
}

// AttrMinimumQuery returns the smallest value of attr over label.
func AttrMinimumQuery(label, attr, where string) (string, error) {
	return attrExtremeQuery("min", label, attr, where)
}

// AttrMaximumQuery returns the largest value of attr over label.
func AttrMaximumQuery(label, attr, where string) (string, error) {
	return attrExtremeQuery("max", label, attr, where)
}

// DegreeProperty is the property SetDegree writes when none is given.
func DegreeProperty(o Orientation) string {
	if o == Undirected || o == "" {
		return "degree"
	}
	return string(o) + "_degree"
}

// DegreeQuery stores on each node of nodeLabel the number of matching
// relationships to targetLabel nodes and counts the updated nodes.
func DegreeQuery(nodeLabel string, opts DegreeOptions) (string, error) {
	orientation, err := ParseOrientation(string(opts.Orientation))
	if err != nil {
		return "", err
	}
	target := opts.TargetLabel
	if target == "" {
		target = nodeLabel
	}
	if err := validateIdentifiers("label", nodeLabel, target); err != nil {
		return "", err
	}

	rel := "-[r]-"
	if opts.RelLabel != "" {
		if err := ValidateIdentifier("relationship type", opts.RelLabel); err != nil {
			return "", err
		}
		rel = fmt.Sprintf("-[r:%s]-", opts.RelLabel)
	}
	switch orientation {
	case Incoming:
		rel = "<" + rel
	case Outgoing:
		rel = rel + ">"
	}

	property := opts.SetProperty
	if property == "" {
		property = DegreeProperty(orientation)
	}
	if err := ValidateIdentifier("property", property); err != nil {
		return "", err
	}

	return joinClauses(
		fmt.Sprintf("MATCH (s:%s)%s(t:%s)", nodeLabel, rel, target),
		NormalizeWhere(opts.Where),
		"WITH s, count(r) AS deg",
		fmt.Sprintf("SET s.%s = deg", property),
		"RETURN count(s) AS total_nodes",
	), nil
}
