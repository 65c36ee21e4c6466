package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ErrStarted is returned when tasks are registered after Start.
var ErrStarted = errors.New("schedule: scheduler already started")

// Task is a named callback fired on a fixed interval.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(at time.Time)
}

// Scheduler runs recurring tasks on independent tickers from one clock.
// Tasks are not synchronized with each other.
type Scheduler struct {
	clock  clockwork.Clock
	logger *zap.Logger

	mu      sync.Mutex
	tasks   []Task
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler. A nil clock uses the wall clock.
func New(clock clockwork.Clock, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{clock: clock, logger: logger}
}

// Clock returns the clock driving the tickers.
func (s *Scheduler) Clock() clockwork.Clock { return s.clock }

// Every registers fn to run each interval once the scheduler starts.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(time.Time)) error {
	if interval <= 0 {
		return fmt.Errorf("schedule: task %q: interval must be positive", name)
	}
	if fn == nil {
		return fmt.Errorf("schedule: task %q: nil callback", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.tasks = append(s.tasks, Task{Name: name, Interval: interval, Run: fn})
	return nil
}

// Start launches one goroutine per task. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, task := range s.tasks {
		// Tickers are created before Start returns so callers can advance
		// a fake clock right away.
		ticker := s.clock.NewTicker(task.Interval)
		s.wg.Add(1)
		go s.loop(ctx, task, ticker)
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context, task Task, ticker clockwork.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case at := <-ticker.Chan():
			s.fire(task, at)
		}
	}
}

func (s *Scheduler) fire(task Task, at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", zap.String("task", task.Name), zap.Any("panic", r))
		}
	}()
	task.Run(at)
}

// Stop cancels every task and waits for in-flight callbacks. Safe to call
// more than once and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Tasks returns the registered tasks.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.tasks...)
}
