package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RetentionTarget names a log directory, the glob its session logs match, and
// files that must survive regardless of age (the live session's own log).
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs deletes session logs older than retentionDays and returns how
// many were removed. Zero or negative retention keeps everything.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		for _, path := range target.expired(cutoff) {
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String(FieldPath, path),
					Error(err),
					String(FieldErrorHint, "check file permissions and log_dir ownership"),
					String(FieldImpact, "old log file remains on disk"),
				)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		logger.Info("pruned old session logs",
			Int("removed", removed),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}

func (t RetentionTarget) expired(cutoff time.Time) []string {
	if t.Dir == "" {
		return nil
	}
	pattern := t.Pattern
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(t.Dir, pattern))
	if err != nil {
		return nil
	}
	keep := make(map[string]bool, len(t.Exclude))
	for _, path := range t.Exclude {
		keep[absolute(path)] = true
	}
	var out []string
	for _, path := range matches {
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || keep[absolute(path)] {
			continue
		}
		if info.ModTime().Before(cutoff) {
			out = append(out, path)
		}
	}
	return out
}

func absolute(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
