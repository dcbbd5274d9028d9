package logging

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"papercast/internal/fileutil"
)

// RetentionTarget names a log directory and filename pattern to prune.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs removes log files matching targets that are older than
// retentionDays and returns how many were removed. A retentionDays of 0
// disables pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	removed := 0
	for _, target := range targets {
		dir := strings.TrimSpace(target.Dir)
		if dir == "" {
			continue
		}

		excluded := make(map[string]struct{}, len(target.Exclude))
		for _, path := range target.Exclude {
			if abs, err := filepath.Abs(strings.TrimSpace(path)); err == nil {
				excluded[abs] = struct{}{}
			}
		}
		paths, err := fileutil.RemoveOlderThan(dir, strings.TrimSpace(target.Pattern), cutoff, func(path string) bool {
			abs, err := filepath.Abs(path)
			if err != nil {
				return true
			}
			_, skip := excluded[abs]
			return skip
		})
		if err != nil {
			WarnWithContext(logger, "log retention cleanup incomplete; files remain", "retention_failed",
				String("dir", dir),
				Error(err),
				String(FieldErrorHint, "check permissions on "+dir),
				String(FieldImpact, "old logs remain on disk"),
			)
		}
		for _, path := range paths {
			if logger != nil {
				logger.Debug("log file pruned", String("path", path), String(FieldEventType, "log_pruned"))
			}
		}
		removed += len(paths)
	}
	return removed
}
