// Package minigraph loads bulk data into Memgraph and maintains it.
//
// The heavy lifting lives in pkg/driver: a MemgraphDriver that templates
// parameterized Cypher for chunked node and relationship upserts, label
// and attribute maintenance, degree computation and duplicate cleanup, and
// returns result rows keyed by their RETURN names. This package wires that
// driver to configuration and adds file imports that survive interruption.
//
// # Connecting
//
// Open builds a driver from a config.Config, layering retries and a
// circuit breaker over the Bolt connection when they are enabled:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	db, err := minigraph.Open(cfg, logger.NewDefaultLogger(slog.LevelInfo))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
// # Importing files
//
// An Importer reads JSON, JSONL or YAML record files and writes them in
// chunks. With a checkpoint manager, progress is stored per chunk and a
// rerun of the same file skips what already committed:
//
//	cm, _ := checkpoint.NewCheckpointManager(cfg.Checkpoint.Path)
//	report, err := minigraph.NewImporter(db, cm, nil).
//		ImportNodes(ctx, "people.jsonl", "Person", "id", driver.NodeWriteOptions{})
//
// # Maintenance
//
// The remaining operations are methods on the driver:
//
//	db.SetIndex(ctx, "Person", "id")
//	db.SetDegree(ctx, "Person", &driver.DegreeOptions{RelLabel: "KNOWS"})
//	db.WipeDuplicateRelationships(ctx, "KNOWS", nil)
//
// The same surface is exposed by the minigraph CLI (cmd/minigraph) and the
// HTTP server (pkg/server).
package minigraph
