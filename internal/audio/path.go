package audio

import (
	"path/filepath"
	"strings"
)

// PodcastFileName returns the artifact name for a job.
func PodcastFileName(jobID string) string {
	return "podcast_" + strings.TrimSpace(jobID) + ".mp3"
}

// PodcastPath joins dir with the artifact name for jobID.
func PodcastPath(dir, jobID string) string {
	return filepath.Join(dir, PodcastFileName(jobID))
}
