package main

import (
	"os"

	"github.com/soundprediction/minigraph/cmd/minigraph"
)

func main() {
	if err := minigraph.Execute(); err != nil {
		os.Exit(1)
	}
}
