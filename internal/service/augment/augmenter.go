// Package augment produces randomized crop, rotate and stretch variants of a
// frame, each resampled to the output size with a single affine warp.
package augment

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"

	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned for an empty input frame.
var ErrEmptyImage = errors.New("empty image")

// Params controls the variants generated for every frame.
type Params struct {
	OutW, OutH int
	NumPer     int
	Frac       float64
	FracVary   float64
	MaxAngRot  float64 // Degrees.
	MaxStretch float64
	Centered   bool
}

// Augmenter draws jitter from its own random source so that a run is
// reproducible for a fixed seed.
type Augmenter struct {
	rng *rand.Rand
}

// NewAugmenter creates an Augmenter using rng for every draw.
func NewAugmenter(rng *rand.Rand) *Augmenter {
	return &Augmenter{rng: rng}
}

// Augment returns p.NumPer variants of img, each exactly OutW x OutH, along
// with the window each variant was cut from. The caller owns the returned
// Mats.
func (a *Augmenter) Augment(img gocv.Mat, p Params) ([]gocv.Mat, []Window, error) {
	if img.Empty() {
		return nil, nil, ErrEmptyImage
	}
	if p.OutW <= 0 || p.OutH <= 0 {
		return nil, nil, fmt.Errorf("invalid output size %dx%d", p.OutW, p.OutH)
	}
	num := p.NumPer
	if num < 1 {
		num = 1
	}

	variants := make([]gocv.Mat, 0, num)
	windows := make([]Window, 0, num)
	for i := 0; i < num; i++ {
		win := a.plan(img.Cols(), img.Rows(), p)
		out, err := warp(img, win, p.OutW, p.OutH)
		if err != nil {
			for _, v := range variants {
				v.Close()
			}
			return nil, nil, fmt.Errorf("variant %d: %w", i, err)
		}
		variants = append(variants, out)
		windows = append(windows, win)
	}
	return variants, windows, nil
}

// plan draws the jitter for one variant and places its window.
func (a *Augmenter) plan(srcW, srcH int, p Params) Window {
	j := Jitter{
		Angle:   p.MaxAngRot * a.symmetric(),
		Frac:    p.Frac + p.FracVary*a.symmetric(),
		Stretch: p.MaxStretch * a.symmetric(),
	}
	if j.Frac <= 0 {
		j.Frac = p.Frac
	}

	w, h, rw, rh := planSize(srcW, srcH, p.OutW, p.OutH, j)
	win := Window{CX: float64(srcW) / 2, CY: float64(srcH) / 2, W: w, H: h, Angle: j.Angle}
	if !p.Centered {
		win.CX = rw/2 + a.rng.Float64()*(float64(srcW)-rw)
		win.CY = rh/2 + a.rng.Float64()*(float64(srcH)-rh)
	}
	return win
}

// symmetric returns a uniform value in [-1, 1).
func (a *Augmenter) symmetric() float64 {
	return -1 + 2*a.rng.Float64()
}

func warp(img gocv.Mat, win Window, outW, outH int) (gocv.Mat, error) {
	coeffs := win.affine(outW, outH)
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer m.Close()
	for i, v := range coeffs {
		m.SetDoubleAt(i/3, i%3, v)
	}

	dst := gocv.NewMat()
	if err := gocv.WarpAffineWithParams(img, &dst, m, image.Pt(outW, outH),
		gocv.InterpolationLinear, gocv.BorderReplicate, color.RGBA{}); err != nil {
		dst.Close()
		return gocv.NewMat(), fmt.Errorf("affine warp failed: %w", err)
	}
	if dst.Empty() || dst.Cols() != outW || dst.Rows() != outH {
		dst.Close()
		return gocv.NewMat(), errors.New("affine warp produced no output")
	}
	return dst, nil
}
