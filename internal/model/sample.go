package model

// Sample represents one written (input, target) pair.
type Sample struct {
	ID         int64   `json:"id"`
	RunID      string  `json:"run_id"`
	Name       string  `json:"name"`
	Split      string  `json:"split"`
	FrameIndex int     `json:"frame_index"`
	Variant    int     `json:"variant"`
	FrameName  string  `json:"frame_name"`
	InputPath  string  `json:"input_path,omitempty"`
	TargetPath string  `json:"target_path"`
	CropX      float64 `json:"crop_x"`
	CropY      float64 `json:"crop_y"`
	CropW      float64 `json:"crop_w"`
	CropH      float64 `json:"crop_h"`
}

// SplitCount is the number of samples written to one split.
type SplitCount struct {
	Split string `json:"split"`
	Count int    `json:"count"`
}
