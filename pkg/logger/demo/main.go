package main

import (
	"log/slog"

	"github.com/soundprediction/minigraph/pkg/logger"
)

func main() {
	// Create a colored logger
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("============================================")
	log.Info("    minigraph Colored Logger Demo")
	log.Info("============================================")
	log.Info("")

	log.Debug("Debug message - standard color")
	log.Info("Info message - standard color")
	log.Info("Writing nodes - green!", "label", "Person", "count", 250000)
	log.Debug("Chunk written - also green!", "chunk", 1, "of", 3)
	log.Warn("Warning message - yellow!")
	log.Error("Error message - red!")

	log.Info("")
	log.Info("Database writes are highlighted in green:")
	log.Info("Writing edges", "source", "Person", "type", "KNOWS", "target", "Person", "count", 1200)
	log.Info("Index created", "label", "Person", "property", "id")
	log.Info("Duplicate relationships removed", "type", "KNOWS", "removed", 37)

	log.Info("")
	log.Info("Demo complete!")
}
