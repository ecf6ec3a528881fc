package model

import "time"

// Run represents one dataset generation run.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Input      string    `json:"input"`
	Output     string    `json:"output"`
	SaveMode   string    `json:"save_mode"`
	Actions    string    `json:"actions"`
	Written    int       `json:"written"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}
