// Command manifest prints what a pairgen run recorded in its manifest.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"pairgen/internal/dto"
	"pairgen/internal/model"
	"pairgen/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/manifest.db", "Manifest database path")
	runID := flag.String("run", "", "Run ID (default: latest run)")
	split := flag.String("split", "", "Only list samples of this split (train or test)")
	limit := flag.Int("limit", 20, "Maximum number of samples to list (0 = all)")
	listRuns := flag.Bool("runs", false, "List every recorded run and exit")
	flag.Parse()

	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		log.Fatalf("Manifest not found: %s", *dbPath)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open manifest: %v", err)
	}
	defer db.Close()

	runRepo := sqlite.NewRunRepository(db)
	sampleRepo := sqlite.NewSampleRepository(db)

	if *listRuns {
		runs, err := runRepo.GetAll()
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		for _, r := range runs {
			printRun(&r)
		}
		return
	}

	var run *model.Run
	if *runID != "" {
		run, err = runRepo.GetByID(*runID)
	} else {
		run, err = runRepo.GetLatest()
	}
	if err != nil {
		log.Fatalf("Failed to load run: %v", err)
	}
	if run == nil {
		fmt.Println("No runs recorded")
		return
	}

	printRun(run)

	counts, err := sampleRepo.CountBySplit(run.ID)
	if err != nil {
		log.Fatalf("Failed to count samples: %v", err)
	}
	fmt.Printf("   Samples per split:\n")
	for _, c := range counts {
		fmt.Printf("      - %s: %d\n", c.Split, c.Count)
	}

	samples, err := sampleRepo.GetAll(&dto.SampleFilters{RunID: run.ID, Split: *split, Limit: *limit})
	if err != nil {
		log.Fatalf("Failed to list samples: %v", err)
	}
	fmt.Printf("\n")
	for _, s := range samples {
		fmt.Printf("%-5s %-40s frame %-6d variant %-2d crop (%.0f,%.0f %.0fx%.0f)\n",
			s.Split, s.Name, s.FrameIndex, s.Variant, s.CropX, s.CropY, s.CropW, s.CropH)
	}
}

func printRun(r *model.Run) {
	status := "unfinished"
	if !r.FinishedAt.IsZero() {
		status = fmt.Sprintf("finished in %s", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Printf("Run %s (%s, %s)\n", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), status)
	fmt.Printf("   Input: %s -> %s [%s]\n", r.Input, r.Output, r.SaveMode)
	fmt.Printf("   Actions: %s\n", r.Actions)
	fmt.Printf("   Written: %d, skipped: %d, failed: %d\n", r.Written, r.Skipped, r.Failed)
}
