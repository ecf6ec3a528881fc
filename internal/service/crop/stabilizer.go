package crop

import "errors"

// ErrNoFace is returned when a frame has no detection and no earlier box to hold.
var ErrNoFace = errors.New("no face detected and no previous crop to hold")

// Stabilize blends a raw box into the previous one: prev + lerp*(raw-prev).
// A nil prev returns raw; lerp 1 disables smoothing.
func Stabilize(raw Box, prev *Box, lerp float64) Box {
	if prev == nil {
		return raw
	}
	return prev.Lerp(raw, lerp)
}

// State carries the smoothed crop box from one processed frame to the next.
// The zero value has no previous box.
type State struct {
	prev *Box
}

// Previous returns the last box produced, if any.
func (s *State) Previous() (Box, bool) {
	if s.prev == nil {
		return Box{}, false
	}
	return *s.prev, true
}

// Step advances the state by one frame. With a detection the box is
// stabilized against the previous one; without a detection the previous box
// is held. The result is clamped to bounds (width, height) and remembered.
func (s *State) Step(detection *Box, lerp float64, width, height int) (Box, error) {
	var next Box
	switch {
	case detection != nil:
		next = Stabilize(*detection, s.prev, lerp)
	case s.prev != nil:
		next = *s.prev
	default:
		return Box{}, ErrNoFace
	}

	next = next.Clamp(width, height)
	s.prev = &next
	return next, nil
}
