package dto

// Progress event statuses.
const (
	StatusStarted  = "started"
	StatusWritten  = "written"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
	StatusFinished = "finished"
)

// ProgressEvent is broadcast to progress viewers after every processed frame.
type ProgressEvent struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Position   int    `json:"position"`
	Total      int    `json:"total"`
	FrameIndex int    `json:"frame_index"`
	FrameName  string `json:"frame_name,omitempty"`
	Split      string `json:"split,omitempty"`
	Written    int    `json:"written"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}
