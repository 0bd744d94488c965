// Package scheduler runs the bulk rule pass on a cron schedule and records
// each run in the bulk run history.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/bankrules/internal/common"
	"github.com/Veraticus/bankrules/internal/model"
	"github.com/robfig/cron/v3"
)

// SourceScheduler is the bulk run source recorded for scheduled runs.
const SourceScheduler = "scheduler"

// ErrAlreadyRunning is returned when a run is requested while one is in progress.
var ErrAlreadyRunning = errors.New("bulk run already in progress")

// BulkApplier runs the bulk rule pass.
type BulkApplier interface {
	BulkApply(ctx context.Context, filter model.BulkFilter) (model.BulkSummary, error)
}

// RunRecorder stores finished bulk runs.
type RunRecorder interface {
	RecordBulkRun(ctx context.Context, run *model.BulkRun) error
}

// Config holds the schedule settings.
type Config struct {
	Schedule    string // standard five field cron expression
	Location    string // IANA zone name or "Local"
	BankAccount string // limits scheduled runs to one bank account when set
}

// Scheduler triggers bulk runs on a cron schedule.
type Scheduler struct {
	baseCtx  context.Context
	applier  BulkApplier
	recorder RunRecorder
	logger   *slog.Logger
	cron     *cron.Cron
	now      func() time.Time
	config   Config
	entryID  cron.EntryID
	mu       sync.Mutex
	// runMu keeps a manual trigger from overlapping a scheduled run.
	runMu sync.Mutex
}

// New creates a scheduler. An unknown location falls back to UTC.
func New(config Config, applier BulkApplier, recorder RunRecorder, logger *slog.Logger) (*Scheduler, error) {
	if applier == nil || recorder == nil {
		return nil, fmt.Errorf("%w: scheduler needs an engine and a run recorder", common.ErrMissingConfig)
	}
	if config.Schedule == "" {
		return nil, fmt.Errorf("%w: schedule is required", common.ErrMissingConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	loc, err := loadLocation(config.Location)
	if err != nil {
		logger.Warn("invalid timezone, falling back to UTC", "location", config.Location, "error", err)
		loc = time.UTC
	}

	cl := cronLogger{logger: logger}
	s := &Scheduler{
		baseCtx:  context.Background(),
		applier:  applier,
		recorder: recorder,
		logger:   logger,
		config:   config,
		now:      time.Now,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}

	s.entryID, err = s.cron.AddFunc(config.Schedule, s.runScheduled)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid schedule %q: %w", common.ErrInvalidConfig, config.Schedule, err)
	}

	return s, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// Start begins running the schedule. Scheduled runs use ctx, so canceling
// it interrupts a run in progress.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.config.Schedule, "next_run", s.Next())
}

// Stop stops the schedule and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled run time, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) runScheduled() {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled bulk run failed", "error", err)
	}
}

// RunOnce runs one bulk pass now and records it. The run is recorded even
// when the pass stops early, with whatever it had counted.
func (s *Scheduler) RunOnce(ctx context.Context) (model.BulkRun, error) {
	if !s.runMu.TryLock() {
		return model.BulkRun{}, ErrAlreadyRunning
	}
	defer s.runMu.Unlock()

	run := model.BulkRun{
		Source:      SourceScheduler,
		BankAccount: s.config.BankAccount,
		StartedAt:   s.now(),
	}

	s.logger.Info("starting scheduled bulk run", "bank_account", run.BankAccount)

	summary, applyErr := s.applier.BulkApply(ctx, model.BulkFilter{BankAccount: s.config.BankAccount})
	run.Summary = summary
	run.FinishedAt = s.now()

	// Record with a fresh context so an interrupted run still lands in history.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.recorder.RecordBulkRun(recordCtx, &run); err != nil {
		return run, errors.Join(applyErr, fmt.Errorf("failed to record bulk run: %w", err))
	}

	if applyErr != nil {
		return run, fmt.Errorf("bulk run failed: %w", applyErr)
	}

	s.logger.Info("scheduled bulk run finished",
		"run_id", run.ID,
		"total", summary.TotalTransactions,
		"applied", summary.RulesApplied,
		"errors", summary.Errors,
		"duration", run.FinishedAt.Sub(run.StartedAt))

	return run, nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
