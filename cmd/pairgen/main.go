// Command pairgen builds paired (input, target) image datasets from a video
// or a directory of images.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pairgen/internal/app"
	"pairgen/internal/config"
	"pairgen/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	if err := config.ParseFlags(cfg, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "pairgen: %v\n", err)
		return 1
	}

	if cfg.ShowVersion {
		fmt.Printf("pairgen %s\n", version)
		return 0
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "pairgen: %v\n", err)
		return 1
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pairgen: %v\n", err)
		return 1
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("=== pairgen %s ===", version)
	log.Info("In:      %s", cfg.InputSrc)
	log.Info("Out:     %s (%s, %s)", cfg.OutputDir, cfg.SaveMode, cfg.SaveExt)
	log.Info("Actions: %v", cfg.Actions)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	defer application.Close()

	stats, err := application.Run(ctx)
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	if !stats.OK() {
		return 1
	}
	return 0
}
