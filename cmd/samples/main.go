package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"metriscope/internal/testkit"
)

// Writes the synthetic sample datasets used for demos and manual testing
func main() {
	outDir := flag.String("out", "samples", "output directory")
	seed := flag.Int64("seed", 42, "generator seed")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("[samples] create %s: %v", *outDir, err)
	}

	gen := testkit.NewGenerator(*seed)
	files := map[string][]byte{
		"timeseries_step.csv": gen.TimeseriesCSV(90, 100, 40, 44),
		"experiment.csv":      gen.ExperimentCSV(10, 13, 400),
		"events.csv":          gen.EventLevelCSV(14, 40, 5),
		"messy_export.csv":    gen.MessyCSV(60),
	}
	for name, data := range files {
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatalf("[samples] write %s: %v", path, err)
		}
		log.Printf("[samples] wrote %s (%d bytes)", path, len(data))
	}
}
