package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"fintrack/internal/log"
)

// Job is a unit of scheduled work.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// JobFunc turns a function into a Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }
func (j JobFunc) Name() string                  { return j.JobName }

// Scheduler runs jobs on cron schedules. Runs of the same job never overlap.
type Scheduler struct {
	cron   *cron.Cron
	logger *log.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScheduler(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger.WithComponent(log.ComponentWorker),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers job. Schedule examples:
//   - "@every 15m"   - every 15 minutes
//   - "@hourly"      - every hour
//   - "0 3 * * *"    - 03:00 daily
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.runJob(job)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}
	s.logger.Info("Job registered", "schedule", schedule, "job", job.Name())
	return nil
}

func (s *Scheduler) runJob(job Job) {
	s.logger.Debug("Running job", "job", job.Name())
	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("Job failed", "job", job.Name(), log.FieldError, err)
		return
	}
	s.logger.Debug("Job completed", "job", job.Name())
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.logger.Info("Running job immediately", "job", job.Name())
	return job.Run(s.ctx)
}

// Start begins running scheduled jobs. A stopped scheduler cannot be
// restarted.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("scheduler was stopped")
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("Scheduler started")
	return nil
}

// Stop cancels running jobs and waits for them to return, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
