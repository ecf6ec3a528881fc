package ai

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sort"
	"sync"

	"pairgen/internal/logger"

	"gocv.io/x/gocv"
)

const (
	// EncodingSize is the length of a face embedding.
	EncodingSize = 128
	// FaceMatchTolerance is the largest embedding distance accepted as the same person.
	FaceMatchTolerance = 0.9
	embedInputSize     = 96
)

// Encoding is an L2 normalized face embedding.
type Encoding []float32

// Distance returns the euclidean distance between two encodings.
func (e Encoding) Distance(other Encoding) float64 {
	n := len(e)
	if len(other) < n {
		n = len(other)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(e[i] - other[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// FaceService detects faces with a Haar cascade and identifies them with an
// embedding network. The embedder is optional; without it only the largest
// face can be selected.
type FaceService struct {
	cascade     gocv.CascadeClassifier
	embedder    gocv.Net
	hasEmbedder bool
	mu          sync.Mutex
	logger      *logger.Logger
}

// NewFaceService loads the cascade and, when embedderPath is not empty, the
// embedding network.
func NewFaceService(cascadePath, embedderPath string, logger *logger.Logger) (*FaceService, error) {
	if _, err := os.Stat(cascadePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("face cascade not found: %s", cascadePath)
	}

	cascade := gocv.NewCascadeClassifier()
	if !cascade.Load(cascadePath) {
		cascade.Close()
		return nil, fmt.Errorf("failed to load face cascade %s", cascadePath)
	}

	service := &FaceService{cascade: cascade, logger: logger}
	if embedderPath != "" {
		net, err := loadNet(embedderPath)
		if err != nil {
			cascade.Close()
			return nil, err
		}
		service.embedder = net
		service.hasEmbedder = true
	}

	logger.Info("Face service initialized (embedder: %t)", service.hasEmbedder)
	return service, nil
}

// Detect returns every face rectangle in img, largest first.
func (s *FaceService) Detect(img gocv.Mat) ([]image.Rectangle, error) {
	gray, err := ToGray(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	equalized := gocv.NewMat()
	defer equalized.Close()
	if err := gocv.EqualizeHist(gray, &equalized); err != nil {
		return nil, fmt.Errorf("failed to equalize frame: %w", err)
	}

	s.mu.Lock()
	faces := s.cascade.DetectMultiScale(equalized)
	s.mu.Unlock()

	sortByArea(faces)
	return faces, nil
}

// Encode returns the embedding of the largest face in img. The boolean is
// false when no face was found.
func (s *FaceService) Encode(img gocv.Mat) (Encoding, bool, error) {
	faces, err := s.Detect(img)
	if err != nil {
		return nil, false, err
	}
	if len(faces) == 0 {
		return nil, false, nil
	}

	enc, err := s.embed(img, faces[0])
	if err != nil {
		return nil, false, err
	}
	return enc, true, nil
}

// Locate returns the face in img that matches target. With a nil target the
// largest face is returned.
func (s *FaceService) Locate(img gocv.Mat, target Encoding) (image.Rectangle, bool, error) {
	faces, err := s.Detect(img)
	if err != nil {
		return image.Rectangle{}, false, err
	}
	if len(faces) == 0 {
		return image.Rectangle{}, false, nil
	}
	if target == nil {
		return faces[0], true, nil
	}

	encodings := make([]Encoding, len(faces))
	for i, f := range faces {
		enc, err := s.embed(img, f)
		if err != nil {
			return image.Rectangle{}, false, err
		}
		encodings[i] = enc
	}
	best, ok := bestMatch(encodings, target)
	if !ok {
		return image.Rectangle{}, false, nil
	}
	return faces[best], true, nil
}

// bestMatch returns the index of the encoding closest to target, rejecting
// anything farther than FaceMatchTolerance.
func bestMatch(encodings []Encoding, target Encoding) (int, bool) {
	best, bestDist := -1, math.MaxFloat64
	for i, enc := range encodings {
		if d := enc.Distance(target); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > FaceMatchTolerance {
		return -1, false
	}
	return best, true
}

// Isolate keeps an elliptical region around the matching face of img and
// blacks out everything else.
func (s *FaceService) Isolate(img gocv.Mat, target Encoding) (gocv.Mat, error) {
	bgr, err := ToBGR(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer bgr.Close()

	face, ok, err := s.Locate(bgr, target)
	if err != nil {
		return gocv.NewMat(), err
	}
	if !ok {
		return gocv.NewMat(), ErrNoFaceFound
	}
	return isolateFace(bgr, face)
}

// isolateFace copies the ellipse around face out of a BGR image onto a
// black canvas of the same size.
func isolateFace(bgr gocv.Mat, face image.Rectangle) (gocv.Mat, error) {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), bgr.Rows(), bgr.Cols(), gocv.MatTypeCV8UC1)
	defer mask.Close()
	center := image.Pt((face.Min.X+face.Max.X)/2, (face.Min.Y+face.Max.Y)/2)
	axes := image.Pt(face.Dx()*6/10, face.Dy()*7/10)
	if err := gocv.Ellipse(&mask, center, axes, 0, 0, 360, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1); err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to draw face mask: %w", err)
	}

	out := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), bgr.Rows(), bgr.Cols(), gocv.MatTypeCV8UC3)
	if err := bgr.CopyToWithMask(&out, mask); err != nil {
		out.Close()
		return gocv.NewMat(), fmt.Errorf("failed to copy face region: %w", err)
	}
	return out, nil
}

// embed computes the embedding of one face region.
func (s *FaceService) embed(img gocv.Mat, face image.Rectangle) (Encoding, error) {
	if !s.hasEmbedder {
		return nil, fmt.Errorf("face identification: %w", ErrModelNotLoaded)
	}

	face = face.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if face.Empty() {
		return nil, fmt.Errorf("face region outside image")
	}

	region := img.Region(face)
	defer region.Close()

	blob := gocv.BlobFromImage(region, 1.0/255, image.Pt(embedInputSize, embedInputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.mu.Lock()
	s.embedder.SetInput(blob, "")
	output := s.embedder.Forward("")
	s.mu.Unlock()
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding: %v", err)
	}
	if len(data) < EncodingSize {
		return nil, fmt.Errorf("embedding has %d values, expected %d", len(data), EncodingSize)
	}

	enc := make(Encoding, EncodingSize)
	copy(enc, data[:EncodingSize])
	normalize(enc)
	return enc, nil
}

// Close releases the cascade and the embedder.
func (s *FaceService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.cascade.Close()
	if s.hasEmbedder {
		if cerr := s.embedder.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func normalize(enc Encoding) {
	var sum float64
	for _, v := range enc {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range enc {
		enc[i] *= inv
	}
}

func sortByArea(faces []image.Rectangle) {
	sort.SliceStable(faces, func(i, j int) bool {
		return faces[i].Dx()*faces[i].Dy() > faces[j].Dx()*faces[j].Dy()
	})
}
