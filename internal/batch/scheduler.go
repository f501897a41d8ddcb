package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// cronParser accepts standard five-field expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCron validates a cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// Scheduler triggers batch runs on a cron schedule. Between runs it
// watches the credentials file and reloads it when edited, so new
// profiles join the next run without a restart.
type Scheduler struct {
	schedule  cron.Schedule
	credsPath string
	reload    func() error
	run       func(ctx context.Context) error
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler builds a scheduler. reload re-reads the credentials
// file; run executes one batch.
func NewScheduler(cronExpr, credsPath string, reload func() error, run func(ctx context.Context) error, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := ParseCron(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedule:  schedule,
		credsPath: credsPath,
		reload:    reload,
		run:       run,
		logger:    logger,
	}, nil
}

// NextRun returns the next trigger time.
func (s *Scheduler) NextRun() time.Time {
	return s.schedule.Next(time.Now())
}

// Serve blocks until the context is cancelled, firing a batch at every
// scheduled time. A run that overlaps the next trigger makes that
// trigger a no-op.
func (s *Scheduler) Serve(ctx context.Context) error {
	watcher, err := s.watchCredentials(ctx)
	if err != nil {
		s.logger.Warn("credentials watch unavailable", "error", err)
	} else {
		defer watcher.Close()
	}

	for {
		next := s.schedule.Next(time.Now())
		s.logger.Info("next scheduled run", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if !s.tryStart() {
			s.logger.Warn("previous run still in progress, skipping trigger")
			continue
		}
		go func() {
			defer s.finish()
			if err := s.run(ctx); err != nil {
				s.logger.Error("scheduled run failed", "error", err)
			}
		}()
	}
}

func (s *Scheduler) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) finish() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// watchCredentials reloads the credentials file on writes. The parent
// directory is watched because editors and spreadsheet apps replace
// the file rather than write in place.
func (s *Scheduler) watchCredentials(ctx context.Context) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(s.credsPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(s.credsPath)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				// editors fire several events per save; a short settle
				// window collapses them
				time.Sleep(500 * time.Millisecond)
				if err := s.reload(); err != nil {
					s.logger.Error("credentials reload failed", "error", err)
				} else {
					s.logger.Info("credentials reloaded", "path", s.credsPath)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("credentials watch error", "error", err)
			}
		}
	}()

	return watcher, nil
}
