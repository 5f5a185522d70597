package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is a unit of periodic maintenance work.
type Task struct {
	Name    string
	Timeout time.Duration
	Run     func(context.Context) error
}

// Scheduler runs registered tasks on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	tasks    []Task
	logger   *zap.Logger
}

// NewScheduler builds a scheduler for a standard cron expression or descriptor
// such as "@hourly".
func NewScheduler(schedule string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = "@hourly"
	}
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		schedule: schedule,
		logger:   logger,
	}
}

// Add registers a task. Must be called before Start.
func (s *Scheduler) Add(task Task) {
	s.tasks = append(s.tasks, task)
}

// Start validates the schedule and begins running tasks.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		return fmt.Errorf("schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("maintenance scheduler started", zap.String("schedule", s.schedule), zap.Int("tasks", len(s.tasks)))
	return nil
}

// Stop halts scheduling and waits for running tasks up to the context deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("maintenance scheduler stop timed out")
	}
}

// RunOnce executes every task sequentially, logging failures.
func (s *Scheduler) RunOnce() {
	for _, task := range s.tasks {
		timeout := task.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		start := time.Now()
		err := task.Run(ctx)
		cancel()
		if err != nil {
			s.logger.Error("maintenance task failed", zap.String("task", task.Name), zap.Error(err))
			continue
		}
		s.logger.Debug("maintenance task finished", zap.String("task", task.Name), zap.Duration("took", time.Since(start)))
	}
}
