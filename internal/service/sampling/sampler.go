// Package sampling selects which frames of a source are used and labels the
// emitted samples as train or test.
package sampling

import "math/rand"

// Select returns the frame indices to process.
//
// maxCount <= 0 means no limit. With shuffle the indices are drawn without
// replacement in draw order; without it the first indices are taken in
// natural order, so unshuffled runs always see the earliest frames.
func Select(total, maxCount int, shuffle bool, rng *rand.Rand) []int {
	if total <= 0 {
		return nil
	}
	n := total
	if maxCount > 0 && maxCount < total {
		n = maxCount
	}

	if !shuffle {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	// Partial Fisher-Yates: the first n slots end up holding n distinct draws.
	pool := make([]int, total)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(total-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// FrameNumber maps sample position k of a video with total sample slots onto
// a real frame number: floor(k / total * trueTotal).
func FrameNumber(k, total, trueTotal int) int {
	if total <= 0 {
		return 0
	}
	f := int(float64(k) / float64(total) * float64(trueTotal))
	if f >= trueTotal {
		f = trueTotal - 1
	}
	if f < 0 {
		f = 0
	}
	return f
}
