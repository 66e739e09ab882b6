// Package scheduler runs the coordinator's periodic jobs on cron specs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/studystake/coordinator/internal/chain"
	"github.com/studystake/coordinator/internal/services"
	"go.uber.org/zap"
)

// ErrUnknownJob is returned by RunNow for an unregistered name
var ErrUnknownJob = errors.New("unknown job")

// Job is a named unit of periodic work
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Recorder observes job runs
type Recorder interface {
	JobRun(job string, d time.Duration, err error)
}

// Scheduler wraps a cron runner. Overlapping runs of the same job are
// skipped and panics are recovered.
type Scheduler struct {
	cron     *cron.Cron
	logger   *zap.Logger
	recorder Recorder

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]Job
}

// New creates an idle scheduler
func New(logger *zap.Logger, recorder Recorder) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Named("cron").Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:   logger,
		recorder: recorder,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]Job),
	}
}

// Add registers a job under its spec
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.execute(s.ctx, job) }); err != nil {
		return fmt.Errorf("invalid spec for job %q: %w", job.Name, err)
	}
	s.jobs[job.Name] = job
	return nil
}

// Start begins firing jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop cancels running jobs and waits for them until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes a registered job synchronously
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)

	if s.recorder != nil {
		s.recorder.JobRun(job.Name, elapsed, err)
	}
	if err != nil {
		s.logger.Error("job failed", zap.String("job", job.Name), zap.Duration("elapsed", elapsed), zap.Error(err))
		return err
	}
	s.logger.Debug("job finished", zap.String("job", job.Name), zap.Duration("elapsed", elapsed))
	return nil
}

// SweepJob attests progress for every active commitment
func SweepJob(spec string, o *services.Orchestrator) Job {
	return Job{
		Name: "sweep",
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := o.SweepActiveCommitments(ctx)
			return err
		},
	}
}

// ExpireJob fails commitments whose deadline passed
func ExpireJob(spec string, l *services.Lifecycle) Job {
	return Job{
		Name: "expire",
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := l.ExpireOverdue(ctx)
			return err
		},
	}
}

// ConfirmJob settles pending transactions from chain receipts.
// It is a no-op while the chain client is disabled.
func ConfirmJob(spec string, l *services.Lifecycle, receipts services.ReceiptReader, batch int) Job {
	return Job{
		Name: "confirm",
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := l.ConfirmPending(ctx, receipts, batch)
			if errors.Is(err, chain.ErrDisabled) {
				return nil
			}
			return err
		},
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
