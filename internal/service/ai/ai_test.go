package ai

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// ========================================
// Quantize
// ========================================

func TestQuantize_MapsToNearestPaletteColor(t *testing.T) {
	// BGR pixels: near white, near black, reddish, greenish.
	data := []byte{
		250, 240, 245, 10, 5, 0,
		10, 20, 120, 5, 130, 10,
	}
	img, err := gocv.NewMatFromBytes(2, 2, gocv.MatTypeCV8UC3, data)
	require.NoError(t, err)
	defer img.Close()

	out, err := Quantize(img, DefaultPalette)
	require.NoError(t, err)
	defer out.Close()

	want := []byte{
		255, 255, 255, 0, 0, 0,
		0, 0, 127, 0, 127, 0,
	}
	assert.Equal(t, want, out.ToBytes())
}

func TestQuantize_GrayInputBecomesBGR(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 0, 0, 0), 4, 6, gocv.MatTypeCV8UC1)
	defer img.Close()

	out, err := Quantize(img, DefaultPalette)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 3, out.Channels())
	assert.Equal(t, 6, out.Cols())
	assert.Equal(t, 4, out.Rows())
}

func TestQuantize_EmptyPalette(t *testing.T) {
	img := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
	defer img.Close()

	_, err := Quantize(img, nil)
	assert.Error(t, err)
}

func TestNearest(t *testing.T) {
	palette := []color.RGBA{{R: 0, G: 0, B: 0}, {R: 255, G: 0, B: 0}}
	assert.Equal(t, palette[1], nearest(palette, 200, 10, 10))
	assert.Equal(t, palette[0], nearest(palette, 60, 10, 10))
}

// ========================================
// Trace
// ========================================

func TestTrace_FlatImageIsWhite(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), 32, 48, gocv.MatTypeCV8UC3)
	defer img.Close()

	out, err := Trace(img)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 48, out.Cols())
	assert.Equal(t, 32, out.Rows())
	assert.Equal(t, 3, out.Channels())
	for _, b := range out.ToBytes() {
		if b != 255 {
			t.Fatalf("expected a blank white trace, found value %d", b)
		}
	}
}

// ========================================
// Segmentation helpers
// ========================================

func TestArgmaxClasses(t *testing.T) {
	// Two classes over a 1x3 plane.
	scores := []float32{
		0.9, 0.1, 0.5,
		0.1, 0.8, 0.6,
	}
	assert.Equal(t, []int{0, 1, 1}, ArgmaxClasses(scores, 2, 1, 3))
}

func TestClassColor(t *testing.T) {
	assert.Equal(t, color.RGBA{A: 255}, ClassColor(0))
	assert.Equal(t, color.RGBA{R: 128, A: 255}, ClassColor(1))
	assert.Equal(t, color.RGBA{G: 128, A: 255}, ClassColor(2))
	assert.Equal(t, color.RGBA{R: 192, G: 128, B: 128, A: 255}, ClassColor(15))
}

func TestColorizeLabels_WritesBGR(t *testing.T) {
	out := ColorizeLabels([]int{1, 2}, 1, 2)
	assert.Equal(t, []byte{0, 0, 128, 0, 128, 0}, out)
}

// ========================================
// Services without models
// ========================================

func TestEdgeService_NilReportsModelNotLoaded(t *testing.T) {
	var s *EdgeService
	img := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	defer img.Close()

	_, err := s.Detect(img)
	assert.ErrorIs(t, err, ErrModelNotLoaded)
}

func TestNewEdgeService_MissingModel(t *testing.T) {
	_, err := NewEdgeService("does/not/exist.onnx", nil)
	assert.Error(t, err)
}

// ========================================
// Errors and encodings
// ========================================

func TestTransformError_Unwrap(t *testing.T) {
	err := error(&TransformError{Action: "face", Err: ErrNoFaceFound})

	assert.True(t, errors.Is(err, ErrNoFaceFound))
	assert.Contains(t, err.Error(), "face")

	var te *TransformError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "face", te.Action)
}

func TestEncoding_Distance(t *testing.T) {
	a := Encoding{1, 0, 0}
	b := Encoding{0, 1, 0}
	assert.InDelta(t, math.Sqrt2, a.Distance(b), 1e-6)
	assert.InDelta(t, 0, a.Distance(a), 1e-9)
}

func TestNormalize(t *testing.T) {
	enc := Encoding{3, 4}
	normalize(enc)
	assert.InDelta(t, 0.6, enc[0], 1e-6)
	assert.InDelta(t, 0.8, enc[1], 1e-6)
}

// ========================================
// Face matching and isolation
// ========================================

func TestBestMatch_PicksClosestWithinTolerance(t *testing.T) {
	encodings := []Encoding{{1, 0}, {0, 1}}

	idx, ok := bestMatch(encodings, Encoding{0.2, 0.98})
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestBestMatch_RejectsBeyondTolerance(t *testing.T) {
	encodings := []Encoding{{1, 0}, {0, 1}}

	// Distances are 2 and sqrt(2), both above FaceMatchTolerance.
	_, ok := bestMatch(encodings, Encoding{-1, 0})
	assert.False(t, ok)

	_, ok = bestMatch(nil, Encoding{1, 0})
	assert.False(t, ok)
}

func TestIsolateFace_KeepsEllipseOnly(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 150, 100, 0), 100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	out, err := isolateFace(img, image.Rect(30, 30, 70, 70))
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 100, out.Cols())
	assert.Equal(t, 100, out.Rows())
	assert.Equal(t, 3, out.Channels())

	tests := []struct {
		name     string
		row, col int
		kept     bool
	}{
		{"face center", 50, 50, true},
		{"above the box, inside the ellipse", 25, 50, true},
		{"box corner outside the ellipse", 30, 30, false},
		{"background", 5, 5, false},
	}
	for _, tt := range tests {
		px := out.GetVecbAt(tt.row, tt.col)
		if tt.kept {
			assert.Equal(t, []uint8{200, 150, 100}, []uint8{px[0], px[1], px[2]}, tt.name)
		} else {
			assert.Equal(t, []uint8{0, 0, 0}, []uint8{px[0], px[1], px[2]}, tt.name)
		}
	}
}
