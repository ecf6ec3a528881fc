// Package source reads raw frames from a video file or a directory of images.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

var (
	// ErrUnsupportedInput is returned for an input that is neither a
	// directory nor a known video container.
	ErrUnsupportedInput = errors.New("unsupported input")
	// ErrFrameUnavailable is returned when a frame cannot be decoded.
	ErrFrameUnavailable = errors.New("frame unavailable")
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".m4v": true, ".webm": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// Frame is one decoded frame. The caller owns Image.
type Frame struct {
	Image gocv.Mat
	Index int    // Position in the source index space.
	Name  string // frame%06d for video, file stem for images.
}

// FrameSource yields frames by index.
type FrameSource interface {
	Count() int
	FrameAt(i int) (Frame, error)
	Close() error
}

// Open returns the source for path: a directory of images or a video file.
func Open(path string) (FrameSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	if info.IsDir() {
		return OpenDirectory(path)
	}
	if IsVideoFile(path) {
		return OpenVideo(path)
	}
	return nil, fmt.Errorf("%w: %s is not a directory or a video file", ErrUnsupportedInput, path)
}

// IsVideoFile reports whether path has a known video extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsImageFile reports whether path has a known image extension.
func IsImageFile(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}
