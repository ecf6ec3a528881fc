// Package pipeline runs the per-frame loop: decode, crop, augment,
// transform and write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math/rand"
	"time"

	"pairgen/internal/config"
	"pairgen/internal/dto"
	"pairgen/internal/logger"
	"pairgen/internal/service/action"
	"pairgen/internal/service/ai"
	"pairgen/internal/service/augment"
	"pairgen/internal/service/crop"
	"pairgen/internal/service/metrics"
	"pairgen/internal/service/sampling"
	"pairgen/internal/service/source"
	"pairgen/internal/service/storage"

	"github.com/schollz/progressbar/v3"
	"gocv.io/x/gocv"
)

// FaceLocator finds the target face in a frame.
type FaceLocator interface {
	Locate(img gocv.Mat, target ai.Encoding) (image.Rectangle, bool, error)
}

// SampleWriter persists all pairs of one frame.
type SampleWriter interface {
	WriteSample(records []storage.Record) ([]storage.Written, error)
}

// Publisher receives progress events. Publish must not block.
type Publisher interface {
	Publish(event dto.ProgressEvent)
}

// Deps are the collaborators of a Runner, built once at startup.
type Deps struct {
	Source     source.FrameSource
	Pipeline   *action.Pipeline
	Writer     SampleWriter
	Faces      FaceLocator // Required when face cropping is enabled.
	TargetFace ai.Encoding
	Progress   Publisher // Optional.
	Rng        *rand.Rand
	BarOutput  io.Writer // Progress bar destination; nil disables the bar.
}

// Runner processes the selected frames of one source sequentially.
type Runner struct {
	cfg       *config.Config
	deps      Deps
	augmenter *augment.Augmenter
	params    augment.Params
	logger    *logger.Logger
	runID     string
}

// NewRunner creates a Runner.
func NewRunner(cfg *config.Config, runID string, deps Deps, logger *logger.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		deps:      deps,
		augmenter: augment.NewAugmenter(deps.Rng),
		params: augment.Params{
			OutW:       cfg.Width,
			OutH:       cfg.Height,
			NumPer:     cfg.NumPer,
			Frac:       cfg.Frac,
			FracVary:   cfg.FracVary,
			MaxAngRot:  cfg.MaxAngRot,
			MaxStretch: cfg.MaxStretch,
			Centered:   cfg.Centered,
		},
		logger: logger,
		runID:  runID,
	}
}

// frameState is threaded through the loop; it is the only state carried
// from one frame to the next.
type frameState struct {
	crop     crop.State
	position int // Next split label to hand out.
	labels   []sampling.Label
}

// frameError is a per-frame failure tagged with the stage that failed.
type frameError struct {
	stage string
	err   error
}

func (e *frameError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *frameError) Unwrap() error { return e.err }

func fail(stage string, err error) error {
	return &frameError{stage: stage, err: err}
}

var errSkipped = errors.New("frame below minimum dimension")

// Run processes every selected frame until done or ctx is cancelled. The
// returned error is non-nil only for failures that stop the run.
func (r *Runner) Run(ctx context.Context) (RunStats, error) {
	start := time.Now()
	stats := newRunStats()
	stats.Found = r.deps.Source.Count()

	indices := sampling.Select(stats.Found, r.cfg.MaxNumImages, r.cfg.Shuffle, r.deps.Rng)
	stats.Selected = len(indices)

	labels, err := sampling.Assign(len(indices)*r.params.NumPer, r.cfg.PctTest)
	if err != nil {
		return stats, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	state := &frameState{labels: labels}

	r.logger.Info("Found %d frames, processing %d (shuffle: %t, variants per frame: %d)",
		stats.Found, stats.Selected, r.cfg.Shuffle, r.params.NumPer)
	r.publish(dto.ProgressEvent{Status: dto.StatusStarted, Total: stats.Selected}, &stats)

	bar := r.newBar(len(indices))

	var runErr error
	for i, idx := range indices {
		if ctx.Err() != nil {
			r.logger.Warning("Interrupted after %d of %d frames", i, len(indices))
			stats.Interrupted = true
			break
		}
		stats.Current = i + 1

		frameStart := time.Now()
		event := dto.ProgressEvent{Position: i + 1, Total: stats.Selected, FrameIndex: idx}
		written, name, err := r.processFrame(idx, state)
		metrics.FrameDuration.Observe(time.Since(frameStart).Seconds())
		event.FrameName = name

		switch {
		case errors.Is(err, errSkipped):
			stats.Skipped++
			metrics.FramesSkipped.Inc()
			event.Status = dto.StatusSkipped
			r.logger.Debug("Skipping %s: %v", name, err)

		case err != nil:
			stage := StageDecode
			var fe *frameError
			if errors.As(err, &fe) {
				stage = fe.stage
			}
			stats.Failed++
			stats.FailedBy[stage]++
			metrics.FramesFailed.WithLabelValues(stage).Inc()
			event.Status = dto.StatusFailed
			event.Error = err.Error()
			r.logger.Error("Frame %d (%s) failed: %v", idx, name, err)

			if r.cfg.FailFast {
				runErr = fmt.Errorf("frame %d: %w", idx, err)
			}

		default:
			for _, w := range written {
				stats.Written++
				if w.Label == sampling.Test {
					stats.Test++
				} else {
					stats.Train++
				}
				metrics.SamplesWritten.WithLabelValues(w.Label.String()).Inc()
				event.Split = w.Label.String()
			}
			event.Status = dto.StatusWritten
		}

		r.publish(event, &stats)
		if bar != nil {
			bar.Add(1)
		}
		if runErr != nil {
			break
		}
	}

	if bar != nil {
		bar.Finish()
	}

	stats.Duration = time.Since(start)
	r.publish(dto.ProgressEvent{Status: dto.StatusFinished, Position: stats.Current, Total: stats.Selected}, &stats)
	r.logSummary(&stats)
	return stats, runErr
}

// processFrame handles one selected index: decode, size check, face crop,
// augment, transform and write.
func (r *Runner) processFrame(idx int, state *frameState) ([]storage.Written, string, error) {
	frame, err := r.deps.Source.FrameAt(idx)
	if err != nil {
		return nil, fmt.Sprintf("#%d", idx), fail(StageDecode, err)
	}
	defer frame.Image.Close()
	metrics.FramesProcessed.Inc()

	img := frame.Image
	if img.Cols() < r.cfg.MinDim || img.Rows() < r.cfg.MinDim {
		return nil, frame.Name, fmt.Errorf("%w: %dx%d < %d", errSkipped, img.Cols(), img.Rows(), r.cfg.MinDim)
	}

	var offset image.Point
	if r.cfg.FaceCrop > 0 {
		cropped, box, err := r.cropToFace(img, &state.crop)
		if err != nil {
			return nil, frame.Name, fail(StageFace, err)
		}
		defer cropped.Close()
		img = cropped
		offset = box.Min
	}

	variants, windows, err := r.augmenter.Augment(img, r.params)
	if err != nil {
		return nil, frame.Name, fail(StageAugment, err)
	}
	defer closeAll(variants)

	targets := make([]gocv.Mat, 0, len(variants))
	defer func() { closeAll(targets) }()
	for _, v := range variants {
		target, err := r.deps.Pipeline.Apply(v)
		if err != nil {
			return nil, frame.Name, fail(StageTransform, err)
		}
		targets = append(targets, target)
	}

	records := make([]storage.Record, len(variants))
	for i := range variants {
		win := windows[i]
		records[i] = storage.Record{
			Index:     idx,
			Variant:   i,
			FrameName: frame.Name,
			Label:     state.labels[state.position+i],
			Input:     variants[i],
			Target:    targets[i],
			Window: crop.Box{
				X: win.CX - win.W/2 + float64(offset.X),
				Y: win.CY - win.H/2 + float64(offset.Y),
				W: win.W,
				H: win.H,
			},
		}
	}

	written, err := r.deps.Writer.WriteSample(records)
	if err != nil {
		return nil, frame.Name, fail(StageWrite, err)
	}
	state.position += len(records)
	return written, frame.Name, nil
}

// cropToFace advances the crop state with this frame's detection and
// returns the cropped region.
func (r *Runner) cropToFace(img gocv.Mat, state *crop.State) (gocv.Mat, image.Rectangle, error) {
	rect, found, err := r.deps.Faces.Locate(img, r.deps.TargetFace)
	if err != nil {
		return gocv.NewMat(), image.Rectangle{}, err
	}

	var detection *crop.Box
	if found {
		aspect := float64(r.cfg.Width) / float64(r.cfg.Height)
		box := crop.FaceBox(crop.FromRect(rect), aspect, r.cfg.FaceCrop)
		detection = &box
	}

	box, err := state.Step(detection, r.cfg.FaceCropLerp, img.Cols(), img.Rows())
	if err != nil {
		return gocv.NewMat(), image.Rectangle{}, err
	}

	bounds := box.Rect().Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if bounds.Empty() {
		return gocv.NewMat(), image.Rectangle{}, crop.ErrNoFace
	}

	region := img.Region(bounds)
	defer region.Close()
	return region.Clone(), bounds, nil
}

func (r *Runner) publish(event dto.ProgressEvent, stats *RunStats) {
	if r.deps.Progress == nil {
		return
	}
	event.RunID = r.runID
	event.Written = stats.Written
	event.Skipped = stats.Skipped
	event.Failed = stats.Failed
	r.deps.Progress.Publish(event)
}

func (r *Runner) newBar(total int) *progressbar.ProgressBar {
	if r.deps.BarOutput == nil || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.deps.BarOutput),
		progressbar.OptionSetDescription("Building pairs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (r *Runner) logSummary(stats *RunStats) {
	r.logger.Info("==============================")
	r.logger.Info("Done: %d written, %d skipped, %d failed", stats.Written, stats.Skipped, stats.Failed)
	r.logger.Info("  Frames found: %d, selected: %d, processed: %d", stats.Found, stats.Selected, stats.Current)
	r.logger.Info("  Pairs per split: train %d, test %d", stats.Train, stats.Test)
	for stage, n := range stats.FailedBy {
		r.logger.Warning("  Failed at %s: %d", stage, n)
	}
	r.logger.Info("  Duration: %s", stats.Duration.Round(time.Millisecond))
}

func closeAll(mats []gocv.Mat) {
	for i := range mats {
		mats[i].Close()
	}
}
