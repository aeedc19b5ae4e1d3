// Package expiry implements the fire-and-forget deferred directory removal
// of spec.md §4.G. Grounded on original_source/src/handlers.rs's
// schedule_delete_dir: tokio::spawn + tokio::time::sleep translated into a
// detached goroutine + time.Sleep. Scheduling never blocks the caller and
// the deadline is never canceled by a dropped request.
package expiry

import (
	"log/slog"
	"os"
	"time"
)

// Scheduler removes directories in the background after their configured
// expiry.
type Scheduler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Schedule removes path per spec.md §4.G's rule: -1 does nothing, 0 removes
// immediately in the background, n > 0 waits n seconds first. Removal
// failures are logged, never propagated, and scheduling itself never
// blocks the caller.
func (s *Scheduler) Schedule(path string, expireSeconds int64) {
	if expireSeconds < 0 {
		return
	}

	go func() {
		if expireSeconds > 0 {
			time.Sleep(time.Duration(expireSeconds) * time.Second)
		}
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("failed to remove expired directory", slog.String("path", path), slog.Any("error", err))
			return
		}
		s.logger.Info("removed expired directory", slog.String("path", path))
	}()
}
