package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotLoaded is returned when a model backed transform runs without its network.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrNoFaceFound is returned when face isolation finds no matching face.
	ErrNoFaceFound = errors.New("no matching face found")
)

// TransformError reports a failed content transform for one image.
type TransformError struct {
	Action string
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Action, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}
