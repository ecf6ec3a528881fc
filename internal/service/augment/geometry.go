package augment

import "math"

// Jitter is one random draw of the per-variant augmentation parameters.
type Jitter struct {
	Angle   float64 // Degrees.
	Frac    float64
	Stretch float64
}

// Window is a rotated crop window in source pixel coordinates.
type Window struct {
	CX, CY float64 // Center.
	W, H   float64 // Size before rotation.
	Angle  float64 // Degrees, counter-clockwise.
}

// baseWindow returns the largest window of the given aspect that fits in a
// srcW x srcH image, scaled by frac.
func baseWindow(srcW, srcH, aspect, frac float64) (float64, float64) {
	w, h := srcW, srcH
	if srcW/srcH > aspect {
		w = srcH * aspect
	} else {
		h = srcW / aspect
	}
	return w * frac, h * frac
}

// rotatedExtent returns the axis aligned bounding box size of a w x h
// rectangle rotated by angle degrees.
func rotatedExtent(w, h, angle float64) (float64, float64) {
	rad := angle * math.Pi / 180
	c, s := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	return w*c + h*s, w*s + h*c
}

// planSize computes the stretched window size for j and shrinks it until
// its rotated bounding box fits in the source. It returns the window size
// and the rotated extent.
func planSize(srcW, srcH int, outW, outH int, j Jitter) (w, h, rw, rh float64) {
	sw, sh := float64(srcW), float64(srcH)
	w, h = baseWindow(sw, sh, float64(outW)/float64(outH), j.Frac)

	w *= 1 + j.Stretch
	h /= 1 + j.Stretch

	rw, rh = rotatedExtent(w, h, j.Angle)
	if rw > sw || rh > sh {
		k := math.Min(sw/rw, sh/rh)
		w, h, rw, rh = w*k, h*k, rw*k, rh*k
	}
	return w, h, rw, rh
}

// affine returns the 2x3 forward transform mapping source pixels of win onto
// an outW x outH canvas, row major: [a b tx; c d ty].
func (win Window) affine(outW, outH int) [6]float64 {
	rad := win.Angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	sx := float64(outW) / win.W
	sy := float64(outH) / win.H

	// M = S^-1 * R(-angle); t = out center - M * window center.
	a, b := sx*cos, sx*sin
	c, d := -sy*sin, sy*cos
	ox, oy := float64(outW)/2, float64(outH)/2
	tx := ox - (a*win.CX + b*win.CY)
	ty := oy - (c*win.CX + d*win.CY)
	return [6]float64{a, b, tx, c, d, ty}
}
