// Package driver is a thin helper layer over the Bolt driver for Memgraph.
//
// It builds parameterized Cypher for the bulk and maintenance operations a
// graph import needs (merging nodes and relationships in chunks, adding
// labels, computing degrees, collapsing duplicate relationships) and hands
// every statement to an Executor. Results come back as rows keyed by the
// names in the statement's RETURN clause, with nodes and relationships
// flattened to their property maps.
//
// # Usage
//
//	db, err := driver.NewMemgraphDriver("bolt://localhost:7687", "", "", "")
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	err = db.WriteNodes(ctx, people, "Person", "id", &driver.NodeWriteOptions{ChunkSize: 5000})
//
// # Identifiers and values
//
// Labels, relationship types and property names are spliced into statement
// text and must match [A-Za-z_][A-Za-z0-9_]*; anything else is rejected with
// ErrInvalidIdentifier. Record values always travel as parameters.
//
// # Transactions
//
// Each statement runs in its own auto-commit transaction. Memgraph requires
// this for index and constraint DDL. A chunked write that fails part way
// leaves earlier chunks committed; NodeWriteOptions.SkipChunks resumes it.
//
// # Type Helpers
//
// type_helpers.go holds checked conversions for values read back from rows.
package driver
