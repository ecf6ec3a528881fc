package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"testing"

	"pairgen/internal/config"
	"pairgen/internal/dto"
	"pairgen/internal/logger"
	"pairgen/internal/service/action"
	"pairgen/internal/service/ai"
	"pairgen/internal/service/sampling"
	"pairgen/internal/service/source"
	"pairgen/internal/service/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// ========================================
// Fakes
// ========================================

type fakeSource struct {
	sizes  []image.Point // Per frame width x height.
	broken map[int]bool
	reads  []int
}

func (s *fakeSource) Count() int { return len(s.sizes) }

func (s *fakeSource) FrameAt(i int) (source.Frame, error) {
	s.reads = append(s.reads, i)
	if s.broken[i] {
		return source.Frame{}, fmt.Errorf("%w: corrupt", source.ErrFrameUnavailable)
	}
	size := s.sizes[i]
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(i), 50, 100, 0), size.Y, size.X, gocv.MatTypeCV8UC3)
	return source.Frame{Image: img, Index: i, Name: fmt.Sprintf("frame%06d", i)}, nil
}

func (s *fakeSource) Close() error { return nil }

type fakeWriter struct {
	records []storage.Record
	failAt  map[int]bool
}

func (w *fakeWriter) WriteSample(records []storage.Record) ([]storage.Written, error) {
	if w.failAt[records[0].Index] {
		return nil, errors.New("disk full")
	}
	var out []storage.Written
	for _, r := range records {
		w.records = append(w.records, storage.Record{Index: r.Index, Variant: r.Variant, FrameName: r.FrameName, Label: r.Label, Window: r.Window})
		out = append(out, storage.Written{Name: r.FrameName, Label: r.Label})
	}
	return out, nil
}

type fakeFaces struct {
	hits map[int]image.Rectangle // Keyed by call number.
	call int
}

func (f *fakeFaces) Locate(img gocv.Mat, target ai.Encoding) (image.Rectangle, bool, error) {
	defer func() { f.call++ }()
	r, ok := f.hits[f.call]
	return r, ok, nil
}

type recorder struct {
	events []dto.ProgressEvent
}

func (r *recorder) Publish(e dto.ProgressEvent) { r.events = append(r.events, e) }

// ========================================
// Helpers
// ========================================

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.LogDirectory = t.TempDir()
	l, err := logger.NewLogger(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Width = 16
	cfg.Height = 16
	cfg.Centered = true
	cfg.Actions = []string{"none"}
	return &cfg
}

func sameSizes(n, w, h int) []image.Point {
	sizes := make([]image.Point, n)
	for i := range sizes {
		sizes[i] = image.Pt(w, h)
	}
	return sizes
}

func newRunner(t *testing.T, cfg *config.Config, src source.FrameSource, w SampleWriter, deps Deps) *Runner {
	t.Helper()
	p, err := action.DefaultRegistry().Compile(cfg.Actions, &action.Context{})
	require.NoError(t, err)

	deps.Source = src
	deps.Pipeline = p
	deps.Writer = w
	deps.Rng = rand.New(rand.NewSource(1))
	return NewRunner(cfg, "run-test", deps, testLogger(t))
}

// ========================================
// Run
// ========================================

func TestRun_WritesEveryVariant(t *testing.T) {
	cfg := testConfig()
	cfg.NumPer = 2
	src := &fakeSource{sizes: sameSizes(5, 40, 30)}
	w := &fakeWriter{}

	stats, err := newRunner(t, cfg, src, w, Deps{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Found)
	assert.Equal(t, 5, stats.Selected)
	assert.Equal(t, 10, stats.Written)
	assert.True(t, stats.OK())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, src.reads)
	require.Len(t, w.records, 10)
	assert.Equal(t, 1, w.records[1].Variant)
}

func TestRun_SkippedFramesConsumeNoLabel(t *testing.T) {
	cfg := testConfig()
	cfg.MinDim = 20
	cfg.PctTest = 0.5

	sizes := sameSizes(6, 40, 40)
	sizes[1] = image.Pt(10, 10) // Too small.
	src := &fakeSource{sizes: sizes}
	w := &fakeWriter{}

	stats, err := newRunner(t, cfg, src, w, Deps{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 5, stats.Written)

	// Labels for 6 slots at fraction 0.5 are train,test,train,test,train,test;
	// the five emitted pairs take the first five of them in order.
	want := []sampling.Label{sampling.Train, sampling.Test, sampling.Train, sampling.Test, sampling.Train}
	var got []sampling.Label
	for _, r := range w.records {
		got = append(got, r.Label)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 2, w.records[1].Index, "frame 1 was skipped")
	assert.Equal(t, 3, stats.Train)
	assert.Equal(t, 2, stats.Test)
}

func TestRun_FailedFrameContinues(t *testing.T) {
	cfg := testConfig()
	src := &fakeSource{sizes: sameSizes(4, 32, 32), broken: map[int]bool{1: true}}
	w := &fakeWriter{failAt: map[int]bool{2: true}}

	stats, err := newRunner(t, cfg, src, w, Deps{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, 1, stats.FailedBy[StageDecode])
	assert.Equal(t, 1, stats.FailedBy[StageWrite])
	assert.False(t, stats.OK())
}

func TestRun_FailFastStops(t *testing.T) {
	cfg := testConfig()
	cfg.FailFast = true
	src := &fakeSource{sizes: sameSizes(4, 32, 32), broken: map[int]bool{1: true}}

	stats, err := newRunner(t, cfg, src, &fakeWriter{}, Deps{}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrFrameUnavailable)
	assert.Equal(t, []int{0, 1}, src.reads)
	assert.Equal(t, 1, stats.Written)
}

func TestRun_CancelledContextStopsBeforeNextFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{sizes: sameSizes(3, 32, 32)}
	stats, err := newRunner(t, testConfig(), src, &fakeWriter{}, Deps{}).Run(ctx)
	require.NoError(t, err)

	assert.True(t, stats.Interrupted)
	assert.Empty(t, src.reads)
}

func TestRun_MaxNumImagesTakesPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.MaxNumImages = 3
	src := &fakeSource{sizes: sameSizes(10, 32, 32)}

	stats, err := newRunner(t, cfg, src, &fakeWriter{}, Deps{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Selected)
	assert.Equal(t, []int{0, 1, 2}, src.reads)
}

func TestRun_FaceCropHoldsAndFails(t *testing.T) {
	cfg := testConfig()
	cfg.FaceCrop = 0.5

	// Frame 0 misses with no previous box, frame 1 hits, frame 2 misses and holds.
	faces := &fakeFaces{hits: map[int]image.Rectangle{1: image.Rect(40, 40, 60, 60)}}
	src := &fakeSource{sizes: sameSizes(3, 100, 100)}
	w := &fakeWriter{}

	stats, err := newRunner(t, cfg, src, w, Deps{Faces: faces}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FailedBy[StageFace])
	assert.Equal(t, 2, stats.Written)
	require.Len(t, w.records, 2)

	// The face box is 40x40 centered on (50, 50); the held frame reuses it.
	for _, r := range w.records {
		assert.InDelta(t, 30, r.Window.X, 1e-9)
		assert.InDelta(t, 30, r.Window.Y, 1e-9)
		assert.InDelta(t, 40, r.Window.W, 1e-9)
	}
}

func TestRun_PublishesProgress(t *testing.T) {
	rec := &recorder{}
	src := &fakeSource{sizes: sameSizes(2, 32, 32)}

	_, err := newRunner(t, testConfig(), src, &fakeWriter{}, Deps{Progress: rec}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.events, 4)
	assert.Equal(t, dto.StatusStarted, rec.events[0].Status)
	assert.Equal(t, dto.StatusWritten, rec.events[1].Status)
	assert.Equal(t, "frame000001", rec.events[2].FrameName)
	assert.Equal(t, dto.StatusFinished, rec.events[3].Status)
	assert.Equal(t, 2, rec.events[3].Written)
	assert.Equal(t, "run-test", rec.events[3].RunID)
}
