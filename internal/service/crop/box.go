// Package crop computes the face-centered crop window of a frame and keeps it
// steady across consecutive frames.
package crop

import (
	"image"
	"math"
)

// Box is an axis aligned crop window in pixel coordinates.
type Box struct {
	X, Y, W, H float64
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Center returns the center point of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Lerp moves b towards target by t (0 keeps b, 1 returns target).
func (b Box) Lerp(target Box, t float64) Box {
	return Box{
		X: b.X + t*(target.X-b.X),
		Y: b.Y + t*(target.Y-b.Y),
		W: b.W + t*(target.W-b.W),
		H: b.H + t*(target.H-b.H),
	}
}

// Clamp fits the box inside a width x height image. A box larger than the
// image is shrunk to the image size; otherwise it is shifted inside.
func (b Box) Clamp(width, height int) Box {
	w, h := float64(width), float64(height)
	if b.W > w {
		b.W = w
	}
	if b.H > h {
		b.H = h
	}
	b.X = math.Max(0, math.Min(b.X, w-b.W))
	b.Y = math.Max(0, math.Min(b.Y, h-b.H))
	return b
}

// Rect rounds the box to an integer rectangle.
func (b Box) Rect() image.Rectangle {
	x0 := int(math.Round(b.X))
	y0 := int(math.Round(b.Y))
	x1 := int(math.Round(b.X + b.W))
	y1 := int(math.Round(b.Y + b.H))
	return image.Rect(x0, y0, x1, y1)
}

// FromRect converts an integer rectangle to a Box.
func FromRect(r image.Rectangle) Box {
	return Box{X: float64(r.Min.X), Y: float64(r.Min.Y), W: float64(r.Dx()), H: float64(r.Dy())}
}

// FaceBox returns a box with the given width/height aspect centered on face,
// sized so the face spans faceFrac of the box in its limiting dimension.
func FaceBox(face Box, aspect, faceFrac float64) Box {
	cx, cy := face.Center()

	w := face.W / faceFrac
	h := face.H / faceFrac
	// Grow the short side until the aspect matches; the face never gets cut.
	if w/h < aspect {
		w = h * aspect
	} else {
		h = w / aspect
	}
	return Box{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}
