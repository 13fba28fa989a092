package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs registered tasks on cron schedules. Each run gets its own
// timeout; a slow task cannot wedge the scheduler.
type Scheduler struct {
	cron       *cron.Cron
	runTimeout time.Duration

	mu      sync.Mutex
	running map[string]bool
}

func NewScheduler(runTimeout time.Duration) *Scheduler {
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:       cron.New(),
		runTimeout: runTimeout,
		running:    map[string]bool{},
	}
}

// Register schedules a task. Standard cron expressions and the @every form
// are both accepted.
func (s *Scheduler) Register(spec string, task Task) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(task) })
	if err != nil {
		return err
	}
	slog.Debug("Task registered", "task", task.Name(), "schedule", spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Debug("Task scheduler started")
}

// Stop halts scheduling and waits for in-flight task runs to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Debug("Task scheduler stopped")
}

func (s *Scheduler) run(task Task) {
	// Skip a tick when the previous run of the same task is still going
	s.mu.Lock()
	if s.running[task.Name()] {
		s.mu.Unlock()
		slog.Warn("Task still running, skipping tick", "task", task.Name())
		return
	}
	s.running[task.Name()] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[task.Name()] = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	started := time.Now()
	if err := task.Run(ctx); err != nil {
		slog.Error("Task failed", "task", task.Name(), "duration", time.Since(started), "error", err)
		return
	}
	slog.Debug("Task finished", "task", task.Name(), "duration", time.Since(started))
}
