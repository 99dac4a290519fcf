// Package janitor periodically removes stale files from the download
// working directory. The pipeline cleans up after itself on every exit
// path; the janitor covers files orphaned by a crashed or killed process.
package janitor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

type Janitor struct {
	logger   *slog.Logger
	workDir  string
	maxAge   time.Duration
	interval time.Duration
	cron     *cron.Cron
}

// New creates a Janitor sweeping workDir every interval, removing regular
// files older than maxAge.
func New(log *slog.Logger, workDir string, interval, maxAge time.Duration) *Janitor {
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{
		logger:   log.With(slog.String("component", "janitor")),
		workDir:  workDir,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Start schedules the sweep. It returns an error when the interval does not
// form a valid cron schedule.
func (j *Janitor) Start() error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(fmt.Sprintf("@every %s", j.interval), func() {
		if err := j.Sweep(); err != nil {
			j.logger.Warn("sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	j.cron.Start()
	j.logger.Info("started", slog.String("work_dir", j.workDir), slog.Duration("interval", j.interval))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// Sweep removes every regular file in the working directory whose
// modification time is older than maxAge.
func (j *Janitor) Sweep() error {
	entries, err := os.ReadDir(j.workDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read work dir: %w", err)
	}
	cutoff := time.Now().Add(-j.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.workDir, entry.Name())
		if err := os.Remove(path); err != nil {
			j.logger.Warn("remove stale file failed", slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++
	}
	if removed > 0 {
		j.logger.Info("swept stale files", slog.Int("removed", removed))
	}
	return nil
}
