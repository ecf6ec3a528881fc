// Package action turns an ordered list of action names into a pipeline of
// content transforms.
package action

import (
	"errors"
	"fmt"
	"image/color"
	"sort"

	"pairgen/internal/service/ai"

	"gocv.io/x/gocv"
)

var (
	// ErrUnknownAction is returned by Compile for a name with no registered transform.
	ErrUnknownAction = errors.New("unknown action")
	// ErrMissingCapability is returned by Compile when a transform needs a
	// handle the context does not provide.
	ErrMissingCapability = errors.New("missing capability")
)

// Capability names a run-constant handle a transform depends on.
type Capability string

const (
	CapEdges     Capability = "edge detector"
	CapSegmenter Capability = "segmenter"
	CapFaces     Capability = "face isolator"
)

// EdgeDetector produces edge maps and simplified line drawings.
type EdgeDetector interface {
	Detect(img gocv.Mat) (gocv.Mat, error)
	Simplify(img gocv.Mat) (gocv.Mat, error)
}

// Segmenter produces semantic class maps.
type Segmenter interface {
	Segment(img gocv.Mat) (gocv.Mat, error)
}

// FaceIsolator keeps only the face matching a target identity.
type FaceIsolator interface {
	Isolate(img gocv.Mat, target ai.Encoding) (gocv.Mat, error)
}

// Context carries the handles shared by every transform of a run. It is
// built once at startup and never mutated by a transform.
type Context struct {
	Edges      EdgeDetector
	Segmenter  Segmenter
	Faces      FaceIsolator
	TargetFace ai.Encoding // nil selects the largest face.
	Palette    []color.RGBA
}

// Has reports whether the context provides capability c.
func (cx *Context) Has(c Capability) bool {
	if cx == nil {
		return false
	}
	switch c {
	case CapEdges:
		return cx.Edges != nil
	case CapSegmenter:
		return cx.Segmenter != nil
	case CapFaces:
		return cx.Faces != nil
	}
	return false
}

// Transform maps one image to a new image. It must not close img and must
// return a valid (possibly empty) Mat even when it fails.
type Transform func(img gocv.Mat, cx *Context) (gocv.Mat, error)

type entry struct {
	transform Transform
	needs     []Capability
}

// Registry maps action names to transforms.
type Registry struct {
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds or replaces the transform for name.
func (r *Registry) Register(name string, t Transform, needs ...Capability) {
	r.entries[name] = entry{transform: t, needs: needs}
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Needs returns the capabilities required by the named actions, without
// checking a context. Unknown names are reported as ErrUnknownAction.
func (r *Registry) Needs(names []string) (map[Capability]bool, error) {
	needs := make(map[Capability]bool)
	for _, name := range names {
		e, ok := r.lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownAction, name, r.Names())
		}
		for _, c := range e.needs {
			needs[c] = true
		}
	}
	return needs, nil
}

func (r *Registry) lookup(name string) (entry, bool) {
	if name == "" {
		name = "none"
	}
	e, ok := r.entries[name]
	return e, ok
}

// DefaultRegistry returns the registry of built-in actions.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("none", identity)
	r.Register("quantize", quantize)
	r.Register("trace", trace)
	r.Register("hed", hed, CapEdges)
	r.Register("segment", segment, CapSegmenter)
	r.Register("simplify", simplify, CapEdges)
	r.Register("face", face, CapFaces)
	return r
}

func identity(img gocv.Mat, _ *Context) (gocv.Mat, error) {
	return img.Clone(), nil
}

func quantize(img gocv.Mat, cx *Context) (gocv.Mat, error) {
	palette := ai.DefaultPalette
	if cx != nil && len(cx.Palette) > 0 {
		palette = cx.Palette
	}
	return ai.Quantize(img, palette)
}

func trace(img gocv.Mat, _ *Context) (gocv.Mat, error) {
	return ai.Trace(img)
}

func hed(img gocv.Mat, cx *Context) (gocv.Mat, error) {
	return cx.Edges.Detect(img)
}

func segment(img gocv.Mat, cx *Context) (gocv.Mat, error) {
	return cx.Segmenter.Segment(img)
}

func simplify(img gocv.Mat, cx *Context) (gocv.Mat, error) {
	return cx.Edges.Simplify(img)
}

func face(img gocv.Mat, cx *Context) (gocv.Mat, error) {
	return cx.Faces.Isolate(img, cx.TargetFace)
}
