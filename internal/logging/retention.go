package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ignite/internal/config"
)

// PruneFromConfig removes log files in logging's directory that are older
// than logging.retention_days. The active log is kept. It returns the number
// of files removed.
func PruneFromConfig(logger *slog.Logger, cfg *config.Config) int {
	if cfg == nil || cfg.Logging.RetentionDays <= 0 || cfg.Paths.LogDir == "" {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -cfg.Logging.RetentionDays)
	return pruneLogs(logger, cfg.Paths.LogDir, cfg.LogPath(), cutoff)
}

func pruneLogs(logger *slog.Logger, dir, active string, cutoff time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	active = filepath.Clean(active)
	pruned := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if matched, _ := filepath.Match("*.log*", entry.Name()); !matched {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if path == active {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "old log file not removed", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of paths.log_dir"),
				String(FieldImpact, "stale log file stays on disk"),
			)
			continue
		}
		pruned++
	}
	if pruned > 0 && logger != nil {
		logger.Debug("old log files pruned",
			String(FieldEventType, "logs_pruned"),
			Int("count", pruned),
		)
	}
	return pruned
}
