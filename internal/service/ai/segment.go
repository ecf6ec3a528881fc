package ai

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"pairgen/internal/logger"

	"gocv.io/x/gocv"
)

// segmentInputSize is the square input resolution of the segmentation network.
const segmentInputSize = 512

// SegmentService runs a semantic segmentation network and paints every
// pixel with the color of its most likely class.
type SegmentService struct {
	net    gocv.Net
	mu     sync.Mutex
	logger *logger.Logger
}

// NewSegmentService loads the segmentation model at modelPath.
func NewSegmentService(modelPath string, logger *logger.Logger) (*SegmentService, error) {
	net, err := loadNet(modelPath)
	if err != nil {
		return nil, err
	}

	logger.Info("Segmentation network initialized from %s", modelPath)
	return &SegmentService{net: net, logger: logger}, nil
}

// Segment returns the class color map of img, same size as img.
func (s *SegmentService) Segment(img gocv.Mat) (gocv.Mat, error) {
	if s == nil || s.net.Empty() {
		return gocv.NewMat(), ErrModelNotLoaded
	}

	bgr, err := ToBGR(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer bgr.Close()

	blob := gocv.BlobFromImage(bgr, 1.0/255, image.Pt(segmentInputSize, segmentInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.mu.Lock()
	s.net.SetInput(blob, "")
	scores := s.net.Forward("")
	s.mu.Unlock()
	defer scores.Close()

	// Scores are laid out as [1, classes, rows, cols].
	dims := scores.Size()
	if len(dims) != 4 {
		return gocv.NewMat(), fmt.Errorf("unexpected segmentation output shape %v", dims)
	}
	data, err := scores.DataPtrFloat32()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to read segmentation scores: %v", err)
	}

	labels := ColorizeLabels(ArgmaxClasses(data, dims[1], dims[2], dims[3]), dims[2], dims[3])
	small, err := gocv.NewMatFromBytes(dims[2], dims[3], gocv.MatTypeCV8UC3, labels)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to build label image: %v", err)
	}
	defer small.Close()

	out := gocv.NewMat()
	if err := gocv.Resize(small, &out, image.Pt(bgr.Cols(), bgr.Rows()), 0, 0, gocv.InterpolationNearestNeighbor); err != nil {
		out.Close()
		return gocv.NewMat(), fmt.Errorf("failed to resize label image: %w", err)
	}
	if out.Empty() {
		out.Close()
		return gocv.NewMat(), fmt.Errorf("failed to resize label image")
	}
	return out, nil
}

// Close releases the network.
func (s *SegmentService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Close()
}

// ArgmaxClasses returns, for each of rows*cols pixels, the index of the class
// with the highest score in a planar [classes][rows][cols] score buffer.
func ArgmaxClasses(scores []float32, classes, rows, cols int) []int {
	plane := rows * cols
	best := make([]int, plane)
	for p := 0; p < plane; p++ {
		top := scores[p]
		for c := 1; c < classes; c++ {
			if v := scores[c*plane+p]; v > top {
				top, best[p] = v, c
			}
		}
	}
	return best
}

// ColorizeLabels paints class indices into a BGR byte buffer.
func ColorizeLabels(labels []int, rows, cols int) []byte {
	out := make([]byte, rows*cols*3)
	for i, l := range labels {
		c := ClassColor(l)
		out[3*i], out[3*i+1], out[3*i+2] = c.B, c.G, c.R
	}
	return out
}

// ClassColor returns the PASCAL VOC color of a class index.
func ClassColor(class int) color.RGBA {
	var r, g, b uint8
	for shift := 7; class > 0 && shift >= 0; shift-- {
		r |= uint8(class&1) << shift
		g |= uint8((class>>1)&1) << shift
		b |= uint8((class>>2)&1) << shift
		class >>= 3
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
