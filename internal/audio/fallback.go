package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"papercast/internal/fileutil"
	"papercast/internal/logging"
)

// DefaultFallbackDuration is the placeholder length when none is configured.
const DefaultFallbackDuration = 2 * time.Second

// Fallback writes silent placeholder podcasts.
type Fallback struct {
	dir      string
	duration time.Duration
	logger   *slog.Logger
}

// NewFallback builds a Fallback writing into dir.
func NewFallback(dir string, duration time.Duration, logger *slog.Logger) *Fallback {
	if duration <= 0 {
		duration = DefaultFallbackDuration
	}
	return &Fallback{
		dir:      dir,
		duration: duration,
		logger:   logging.NewComponentLogger(logger, "fallback"),
	}
}

// Duration returns the placeholder length.
func (f *Fallback) Duration() time.Duration {
	return f.duration
}

// Generate writes podcast_<jobID>.mp3 containing silence and returns its path.
func (f *Fallback) Generate(jobID string) (string, error) {
	if strings.TrimSpace(jobID) == "" {
		return "", errors.New("fallback: job id required")
	}
	if strings.TrimSpace(f.dir) == "" {
		return "", errors.New("fallback: output directory not configured")
	}
	path := PodcastPath(f.dir, jobID)
	var size int64
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		n, err := WriteSilence(w, f.duration)
		size = n
		return err
	})
	if err != nil {
		return "", fmt.Errorf("fallback: write %s: %w", path, err)
	}
	f.logger.Info("silent placeholder written",
		logging.JobID(jobID),
		logging.String("path", path),
		logging.Duration("duration", f.duration),
		logging.Int64("bytes", size),
	)
	return path, nil
}
