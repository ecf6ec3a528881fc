package source

import (
	"fmt"
	"sync"

	"pairgen/internal/service/sampling"

	"gocv.io/x/gocv"
)

// VideoSource reads frames from a video container by seeking.
type VideoSource struct {
	capture   *gocv.VideoCapture
	path      string
	total     int
	trueTotal int
	mu        sync.Mutex
}

// OpenVideo opens path and reads its reported frame count.
func OpenVideo(path string) (*VideoSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("failed to open video %s", path)
	}

	frames := int(capture.Get(gocv.VideoCaptureFrameCount))
	if frames <= 0 {
		capture.Close()
		return nil, fmt.Errorf("video %s reports no frames", path)
	}

	return &VideoSource{capture: capture, path: path, total: frames, trueTotal: frames}, nil
}

// Count returns the number of frames the container reports.
func (s *VideoSource) Count() int {
	return s.total
}

// FrameAt seeks to the frame mapped from index k and decodes it.
func (s *VideoSource) FrameAt(k int) (Frame, error) {
	if k < 0 || k >= s.total {
		return Frame{}, fmt.Errorf("%w: index %d out of range", ErrFrameUnavailable, k)
	}
	number := sampling.FrameNumber(k, s.total, s.trueTotal)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.capture.Set(gocv.VideoCapturePosFrames, float64(number))
	img := gocv.NewMat()
	if ok := s.capture.Read(&img); !ok || img.Empty() {
		img.Close()
		return Frame{}, fmt.Errorf("%w: failed to read frame %d of %s", ErrFrameUnavailable, number, s.path)
	}

	return Frame{
		Image: img,
		Index: k,
		Name:  fmt.Sprintf("frame%06d", number),
	}, nil
}

// Close releases the capture.
func (s *VideoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture.Close()
}
