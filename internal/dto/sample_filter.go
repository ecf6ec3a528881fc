package dto

// SampleFilters narrows a manifest query.
type SampleFilters struct {
	RunID string
	Split string // "train", "test" or empty for both.
	Limit int    // 0 means no limit.
}
