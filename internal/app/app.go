package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pairgen/internal/config"
	"pairgen/internal/logger"
	"pairgen/internal/model"
	"pairgen/internal/repository"
	"pairgen/internal/repository/sqlite"
	"pairgen/internal/route"
	"pairgen/internal/service/action"
	"pairgen/internal/service/ai"
	"pairgen/internal/service/pipeline"
	"pairgen/internal/service/source"
	"pairgen/internal/service/storage"
	"pairgen/internal/service/websocket"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// App owns every long lived resource of a run.
type App struct {
	config *config.Config
	logger *logger.Logger

	source    source.FrameSource
	edges     *ai.EdgeService
	segmenter *ai.SegmentService
	faces     *ai.FaceService

	db      *sqlite.DB
	runRepo repository.RunRepository
	run     model.Run

	hub    *websocket.HubService
	server *http.Server

	runner *pipeline.Runner
}

// NewApp validates the action list, loads the models it needs, opens the
// input and prepares the output. Nothing is written when it fails.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{config: cfg, logger: log}

	registry := action.DefaultRegistry()
	needs, err := registry.Needs(cfg.Actions)
	if err != nil {
		return nil, err
	}

	cx, err := a.loadCapabilities(needs)
	if err != nil {
		a.Close()
		return nil, err
	}

	compiled, err := registry.Compile(cfg.Actions, cx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.source, err = source.Open(cfg.InputSrc)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Clean {
		if err := cleanOutput(cfg.OutputDir, cfg.InputSrc); err != nil {
			a.Close()
			return nil, err
		}
		log.Info("Removed previous output in %s", cfg.OutputDir)
	}

	layout, err := storage.SetupLayout(cfg.OutputDir, cfg.SaveMode, cfg.IncludeTest())
	if err != nil {
		a.Close()
		return nil, err
	}

	a.run = model.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Input:     cfg.InputSrc,
		Output:    cfg.OutputDir,
		SaveMode:  string(cfg.SaveMode),
		Actions:   strings.Join(compiled.Names(), ","),
	}

	var samples repository.SampleRepository
	if cfg.ManifestPath != "" {
		a.db, err = sqlite.New(cfg.ManifestPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		runRepo := sqlite.NewRunRepository(a.db)
		if err := runRepo.Insert(&a.run); err != nil {
			a.Close()
			return nil, err
		}
		a.runRepo = runRepo
		samples = sqlite.NewSampleRepository(a.db)
		log.Info("Recording manifest in %s (run %s)", cfg.ManifestPath, a.run.ID)
	}

	if cfg.ProgressAddr != "" {
		a.hub = websocket.NewHubService(log)
		a.server = &http.Server{
			Addr:    cfg.ProgressAddr,
			Handler: route.SetupRoutes(a.hub, log),
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Info("Random seed: %d", seed)

	deps := pipeline.Deps{
		Source:     a.source,
		Pipeline:   compiled,
		Writer:     storage.NewWriter(cfg, layout, a.run.ID, samples),
		TargetFace: cx.TargetFace,
		Rng:        rand.New(rand.NewSource(seed)),
	}
	if a.faces != nil {
		deps.Faces = a.faces
	}
	if a.hub != nil {
		deps.Progress = a.hub
	}
	if !cfg.Quiet {
		deps.BarOutput = os.Stderr
	}
	a.runner = pipeline.NewRunner(cfg, a.run.ID, deps, log)

	return a, nil
}

// loadCapabilities opens the model handles the actions and the face crop
// need and encodes the reference face.
func (a *App) loadCapabilities(needs map[action.Capability]bool) (*action.Context, error) {
	cfg := a.config
	cx := &action.Context{Palette: ai.DefaultPalette}

	if needs[action.CapEdges] {
		edges, err := ai.NewEdgeService(cfg.HEDModelPath, a.logger)
		if err != nil {
			return nil, fmt.Errorf("%w: edge model: %v", config.ErrInvalidConfig, err)
		}
		a.edges = edges
		cx.Edges = edges
	}

	if needs[action.CapSegmenter] {
		segmenter, err := ai.NewSegmentService(cfg.SegmentModelPath, a.logger)
		if err != nil {
			return nil, fmt.Errorf("%w: segmentation model: %v", config.ErrInvalidConfig, err)
		}
		a.segmenter = segmenter
		cx.Segmenter = segmenter
	}

	if needs[action.CapFaces] || cfg.UsesFaces() {
		embedder := ""
		if cfg.TargetFaceImage != "" {
			embedder = cfg.FaceEmbedderPath
		}
		faces, err := ai.NewFaceService(cfg.FaceCascadePath, embedder, a.logger)
		if err != nil {
			return nil, fmt.Errorf("%w: face models: %v", config.ErrInvalidConfig, err)
		}
		a.faces = faces
		cx.Faces = faces

		if cfg.TargetFaceImage != "" {
			target, err := encodeReference(faces, cfg.TargetFaceImage)
			if err != nil {
				return nil, err
			}
			cx.TargetFace = target
			a.logger.Info("Target face encoded from %s", cfg.TargetFaceImage)
		}
	}

	return cx, nil
}

func encodeReference(faces *ai.FaceService, path string) (ai.Encoding, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("%w: cannot read target face image %s", config.ErrInvalidConfig, path)
	}

	enc, found, err := faces.Encode(img)
	if err != nil {
		return nil, fmt.Errorf("%w: target face: %v", config.ErrInvalidConfig, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: no face found in target face image %s", config.ErrInvalidConfig, path)
	}
	return enc, nil
}

// cleanOutput removes the output directory, refusing paths that would also
// remove the input.
func cleanOutput(output, input string) error {
	outAbs, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	inAbs, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(outAbs, inAbs)
	if err == nil && (rel == "." || !strings.HasPrefix(rel, "..")) {
		return fmt.Errorf("%w: refusing to clean %s, it contains the input", config.ErrInvalidConfig, output)
	}
	if err := os.RemoveAll(outAbs); err != nil {
		return fmt.Errorf("failed to clean output directory: %w", err)
	}
	return nil
}

// Run processes the input and records the final counters.
func (a *App) Run(ctx context.Context) (pipeline.RunStats, error) {
	if a.server != nil {
		go a.hub.Run()
		go func() {
			a.logger.Info("Progress server listening on %s", a.config.ProgressAddr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("Progress server failed: %v", err)
			}
		}()
	}

	stats, runErr := a.runner.Run(ctx)

	if a.runRepo != nil {
		a.run.FinishedAt = time.Now()
		a.run.Written = stats.Written
		a.run.Skipped = stats.Skipped
		a.run.Failed = stats.Failed
		if err := a.runRepo.Finish(&a.run); err != nil {
			a.logger.Error("Failed to record run summary: %v", err)
		}
	}

	return stats, runErr
}

// RunID returns the identifier of this run.
func (a *App) RunID() string {
	return a.run.ID
}

// Close releases models, the input, the manifest and the progress server.
func (a *App) Close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		a.server.Shutdown(ctx)
		cancel()
		a.hub.Stop()
	}
	if a.source != nil {
		a.source.Close()
	}
	if a.edges != nil {
		a.edges.Close()
	}
	if a.segmenter != nil {
		a.segmenter.Close()
	}
	if a.faces != nil {
		a.faces.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
