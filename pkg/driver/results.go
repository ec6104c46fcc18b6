package driver

import (
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// Keywords only count when they stand alone, so relationship types such as
// :RETURNED and properties such as n.SKIPPED are left alone.
var (
	returnKeyword     = regexp.MustCompile(`(?i)(?:^|\s)RETURN(?:\s|$)`)
	returnTerminators = regexp.MustCompile(`(?i)\s(?:ORDER\s+BY|SKIP|LIMIT)(?:\s|$)`)
	distinctKeyword   = regexp.MustCompile(`(?i)^DISTINCT\s+`)
	aliasKeyword      = regexp.MustCompile(`(?i)\sAS\s`)
)

// ReturnLabels extracts the names a statement declares in its RETURN clause:
// the item text after the last AS, or the whole expression when unaliased.
// Returns nil when the statement has no RETURN.
func ReturnLabels(query string) []string {
	loc := returnKeyword.FindStringIndex(query)
	if loc == nil {
		return nil
	}
	clause := query[loc[1]:]
	if loc := returnTerminators.FindStringIndex(clause); loc != nil {
		clause = clause[:loc[0]]
	}
	clause = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(clause), ";"))
	clause = strings.TrimSpace(distinctKeyword.ReplaceAllString(clause, ""))
	if clause == "" {
		return nil
	}

	items := splitTopLevel(clause)
	labels := make([]string, 0, len(items))
	for _, item := range items {
		if locs := aliasKeyword.FindAllStringIndex(item, -1); len(locs) > 0 {
			item = item[locs[len(locs)-1][1]:]
		}
		labels = append(labels, strings.TrimSpace(item))
	}
	return labels
}

// splitTopLevel splits on commas that are not nested in (), [] or {}.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// UnpackValue replaces graph entities with their property maps.
func UnpackValue(v any) any {
	if node, ok := AsDBNode(v); ok {
		return node.Props
	}
	if rel, ok := AsDBRelationship(v); ok {
		return rel.Props
	}
	return v
}

// LabelRecords converts records into rows keyed by labels. When labels is
// nil or does not match a record's width the record's own keys are used.
// Returns nil for an empty result.
func LabelRecords(records []*db.Record, labels []string) []Row {
	if len(records) == 0 {
		return nil
	}
	rows := make([]Row, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		keys := labels
		if len(keys) != len(record.Values) {
			keys = record.Keys
		}
		row := make(Row, len(record.Values))
		for i, value := range record.Values {
			if i >= len(keys) {
				break
			}
			row[keys[i]] = UnpackValue(value)
		}
		rows = append(rows, row)
	}
	return rows
}
