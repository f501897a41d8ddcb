// Package batch fans a credential list out over a bounded worker pool,
// one pipeline run per profile. Runs are fault-isolated: a profile that
// fails, or even panics, never takes the batch down. Results flow to
// the durable store incrementally and into the run journal, and the
// batch ends with an aggregate summary delivered to the notifier.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/notify"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/telemetry"
)

// Runner executes one profile's pipeline. *pipeline.Pipeline satisfies
// it; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, cred domain.Credential, slot int) domain.Result
}

// Journal records batches and attempts for later inspection. Nil-able
// via NoopJournal.
type Journal interface {
	BeginBatch(mode string, concurrency int) (string, error)
	RecordAttempt(batchID string, r domain.Result, startedAt time.Time) error
	FinishBatch(batchID string, summary domain.Summary) error
}

// NoopJournal drops all journal writes.
type NoopJournal struct{}

func (NoopJournal) BeginBatch(mode string, concurrency int) (string, error) { return "", nil }
func (NoopJournal) RecordAttempt(batchID string, r domain.Result, startedAt time.Time) error {
	return nil
}
func (NoopJournal) FinishBatch(batchID string, summary domain.Summary) error { return nil }

// Orchestrator runs one batch of profiles.
type Orchestrator struct {
	Pipeline Runner
	Journal  Journal
	Notifier notify.Notifier
	Logger   *slog.Logger

	Concurrency  int
	StaggerDelay time.Duration

	sleep func(ctx context.Context, d time.Duration)
}

// New builds an orchestrator. Journal and Notifier may be nil.
func New(p Runner, journal Journal, notifier notify.Notifier, logger *slog.Logger) *Orchestrator {
	if journal == nil {
		journal = NoopJournal{}
	}
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Pipeline:     p,
		Journal:      journal,
		Notifier:     notifier,
		Logger:       logger,
		Concurrency:  5,
		StaggerDelay: 3 * time.Second,
		sleep:        sleepCtx,
	}
}

// Run processes every credential and returns the aggregate summary
// with all collected results. It only errors when the batch cannot
// start at all; per-profile failures land in the results.
func (o *Orchestrator) Run(ctx context.Context, mode string, creds []domain.Credential) (domain.Summary, []domain.Result, error) {
	if len(creds) == 0 {
		return domain.Summary{}, nil, fmt.Errorf("no profiles to process")
	}

	concurrency := o.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	o.Logger.Info("starting batch",
		"mode", mode, "profiles", len(creds), "concurrency", concurrency)
	started := time.Now()

	batchID, err := o.Journal.BeginBatch(mode, concurrency)
	if err != nil {
		o.Logger.Warn("run journal unavailable", "error", err)
	}
	logger := o.Logger
	if batchID != "" {
		logger = telemetry.WithRunID(o.Logger, batchID)
	}

	var (
		mu      sync.Mutex
		results = make([]domain.Result, 0, len(creds))
	)

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for i, cred := range creds {
		// stagger the initial wave so environment starts do not pile up
		if i > 0 && i < concurrency {
			o.sleep(ctx, o.StaggerDelay)
		}

		slot := i % concurrency
		cred := cred
		g.Go(func() error {
			attemptStart := time.Now()
			result := o.runOne(ctx, cred, slot)

			mu.Lock()
			results = append(results, result)
			mu.Unlock()

			if err := o.Journal.RecordAttempt(batchID, result, attemptStart); err != nil {
				logger.Warn("failed to journal attempt", "profile", cred.Key(), "error", err)
			}
			if result.Failed() {
				if err := o.Notifier.Alert(cred.Email, result.Error); err != nil {
					logger.Warn("alert delivery failed", "error", err)
				}
			}
			return nil
		})
	}

	g.Wait()

	summary := domain.Summarize(results, time.Since(started))
	if err := o.Journal.FinishBatch(batchID, summary); err != nil {
		logger.Warn("failed to close journal batch", "error", err)
	}
	if err := o.Notifier.Report(summary, results); err != nil {
		logger.Warn("report delivery failed", "error", err)
	}

	logger.Info("batch complete",
		"processed", summary.Processed, "errored", summary.Errored,
		"total_share", summary.TotalShare, "duration", summary.Duration)

	return summary, results, nil
}

// runOne is the fault-isolation boundary: whatever the pipeline does,
// the batch gets a result back for this profile.
func (o *Orchestrator) runOne(ctx context.Context, cred domain.Credential, slot int) (result domain.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.Logger.Error("pipeline escaped with panic", "profile", cred.Key(), "panic", r)
			result = domain.Result{
				ProfileID:   cred.ProfileID,
				ProfileName: cred.ProfileName,
				Email:       cred.Email,
				Error:       fmt.Sprintf("panic: %v", r),
				Timestamp:   time.Now(),
			}
		}
	}()
	return o.Pipeline.Run(ctx, cred, slot)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
