package sampling

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFraction is returned for a test fraction outside [0, 1).
var ErrInvalidFraction = errors.New("test fraction must be in [0, 1)")

// Label marks an emitted sample as part of the train or the test set.
type Label bool

const (
	Train Label = false
	Test  Label = true
)

// String returns the directory name of the split.
func (l Label) String() string {
	if l == Test {
		return "test"
	}
	return "train"
}

// Assign labels total emitted samples. Test slots are spread at a regular
// stride of 1/fraction: slot i sits at floor(stride*(i+1)) - 1, which is
// deterministic and reproducible for the same inputs.
func Assign(total int, fraction float64) ([]Label, error) {
	if fraction < 0 || fraction >= 1 || math.IsNaN(fraction) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidFraction, fraction)
	}
	if total < 0 {
		total = 0
	}

	labels := make([]Label, total)
	if fraction == 0 || total == 0 {
		return labels, nil
	}

	nTest := int(float64(total) * fraction)
	stride := 1.0 / fraction
	for i := 0; i < nTest; i++ {
		pos := int(stride*float64(i+1)) - 1
		if pos >= total {
			pos = total - 1
		}
		if pos < 0 {
			pos = 0
		}
		labels[pos] = Test
	}
	return labels, nil
}
