package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"
)

// DirectorySource reads still images from a directory, sorted by file name.
type DirectorySource struct {
	dir   string
	files []string
}

// OpenDirectory lists the image files of dir. Subdirectories and other
// files are ignored.
func OpenDirectory(dir string) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	return &DirectorySource{dir: dir, files: files}, nil
}

// Count returns the number of image files.
func (s *DirectorySource) Count() int {
	return len(s.files)
}

// Files returns the file names in index order.
func (s *DirectorySource) Files() []string {
	return s.files
}

// FrameAt decodes the i-th image.
func (s *DirectorySource) FrameAt(i int) (Frame, error) {
	if i < 0 || i >= len(s.files) {
		return Frame{}, fmt.Errorf("%w: index %d out of range", ErrFrameUnavailable, i)
	}

	name := s.files[i]
	img := gocv.IMRead(filepath.Join(s.dir, name), gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return Frame{}, fmt.Errorf("%w: failed to decode %s", ErrFrameUnavailable, name)
	}

	return Frame{
		Image: img,
		Index: i,
		Name:  strings.TrimSuffix(name, filepath.Ext(name)),
	}, nil
}

// Close is a no-op; images are opened per frame.
func (s *DirectorySource) Close() error {
	return nil
}
