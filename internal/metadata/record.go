package metadata

import "time"

// StatusCompleted is the only status a record is written with.
const StatusCompleted = "completed"

// Record describes a finished podcast artifact.
type Record struct {
	JobID            string    `json:"job_id"`
	OriginalFilename string    `json:"original_filename"`
	OutputPath       string    `json:"output_path"`
	Status           string    `json:"status"`
	Fallback         bool      `json:"fallback"`
	Model            string    `json:"model,omitempty"`
	Title            string    `json:"title,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsCompleted reports whether the record points at a retrievable artifact.
func (r *Record) IsCompleted() bool {
	return r != nil && r.Status == StatusCompleted && r.OutputPath != ""
}
