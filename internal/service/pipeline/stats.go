package pipeline

import "time"

// Failure stages.
const (
	StageDecode    = "decode"
	StageFace      = "face"
	StageAugment   = "augment"
	StageTransform = "transform"
	StageWrite     = "write"
)

// RunStats tracks aggregate counters across a dataset run.
type RunStats struct {
	Found       int // Frames or images available in the source.
	Selected    int // Indices chosen by the sampler.
	Current     int
	Written     int // Pairs written.
	Train       int
	Test        int
	Skipped     int // Frames below the minimum dimension.
	Failed      int // Frames that produced nothing.
	FailedBy    map[string]int
	Interrupted bool
	Duration    time.Duration
}

func newRunStats() RunStats {
	return RunStats{FailedBy: make(map[string]int)}
}

// OK reports whether every selected frame was either written or skipped.
func (s *RunStats) OK() bool {
	return s.Failed == 0 && !s.Interrupted
}
