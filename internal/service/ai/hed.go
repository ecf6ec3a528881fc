package ai

import (
	"fmt"
	"image"
	"sync"

	"pairgen/internal/logger"

	"gocv.io/x/gocv"
)

// HED input normalization (BGR channel means of the training set).
var hedMean = gocv.NewScalar(104.00698793, 116.66876762, 122.67891434, 0)

// EdgeService runs a holistically-nested edge detection network.
type EdgeService struct {
	net       gocv.Net
	modelPath string
	mu        sync.Mutex
	logger    *logger.Logger
}

// NewEdgeService loads the HED model at modelPath.
func NewEdgeService(modelPath string, logger *logger.Logger) (*EdgeService, error) {
	net, err := loadNet(modelPath)
	if err != nil {
		return nil, err
	}

	logger.Info("Edge detection network initialized from %s", modelPath)
	return &EdgeService{net: net, modelPath: modelPath, logger: logger}, nil
}

// Detect returns the edge map of img as dark lines on white, same size as img.
func (s *EdgeService) Detect(img gocv.Mat) (gocv.Mat, error) {
	soft, err := s.edgeMap(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer soft.Close()

	return invertToBGR(soft)
}

// edgeMap returns the raw 8-bit edge strength map (white edges on black).
func (s *EdgeService) edgeMap(img gocv.Mat) (gocv.Mat, error) {
	if s == nil || s.net.Empty() {
		return gocv.NewMat(), ErrModelNotLoaded
	}

	bgr, err := ToBGR(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer bgr.Close()

	size := image.Pt(bgr.Cols(), bgr.Rows())
	blob := gocv.BlobFromImage(bgr, 1.0, size, hedMean, false, false)
	defer blob.Close()

	s.mu.Lock()
	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	s.mu.Unlock()
	defer output.Close()

	if output.Empty() {
		return gocv.NewMat(), fmt.Errorf("edge network returned no output")
	}

	prob := gocv.GetBlobChannel(output, 0, 0)
	defer prob.Close()

	scaled := gocv.NewMat()
	defer scaled.Close()
	if err := prob.ConvertToWithParams(&scaled, gocv.MatTypeCV8U, 255, 0); err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to scale edge map: %w", err)
	}

	edges := gocv.NewMat()
	if err := gocv.Resize(scaled, &edges, size, 0, 0, gocv.InterpolationLinear); err != nil {
		edges.Close()
		return gocv.NewMat(), fmt.Errorf("failed to resize edge map: %w", err)
	}
	if edges.Empty() {
		edges.Close()
		return gocv.NewMat(), fmt.Errorf("failed to resize edge map")
	}
	return edges, nil
}

// Close releases the network.
func (s *EdgeService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Close()
}
