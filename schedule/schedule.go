// Package schedule runs a zero-argument task periodically after an initial
// delay. Runs never overlap: the next run starts only after the previous one
// returns, and ticks missed while a run is in flight are dropped.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tailored-agentic-units/tablecache/observability"
)

// Scheduler event types.
const (
	EventStart     observability.EventType = "schedule.start"
	EventStop      observability.EventType = "schedule.stop"
	EventTaskError observability.EventType = "schedule.task.error"
)

// Sentinel errors for scheduler lifecycle.
var (
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrAlreadyRunning  = errors.New("scheduler already running")
	ErrNilTask         = errors.New("task is nil")
	ErrTaskPanic       = errors.New("scheduled task panicked")
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithObserver overrides the default SlogObserver.
func WithObserver(o observability.Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithName labels the scheduler in emitted events.
func WithName(name string) Option {
	return func(s *Scheduler) { s.name = name }
}

// Scheduler owns the goroutine that invokes its task.
type Scheduler struct {
	task         func()
	interval     time.Duration
	initialDelay time.Duration
	name         string
	observer     observability.Observer

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a Scheduler that calls task every interval, the first time
// after initialDelay. A negative initialDelay is treated as zero.
func New(task func(), interval, initialDelay time.Duration, opts ...Option) (*Scheduler, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	s := &Scheduler{
		task:         task,
		interval:     interval,
		initialDelay: max(initialDelay, 0),
		name:         "schedule",
		observer:     observability.NewSlogObserver(slog.Default()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches the run loop in a goroutine. The loop stops when ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
	return nil
}

// Stop cancels the run loop and waits for an in-flight run to finish.
// Stop is safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Run executes the loop on the calling goroutine until ctx is cancelled and
// returns ctx's error.
func (s *Scheduler) Run(ctx context.Context) error {
	s.loop(ctx)
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context) {
	observability.Emit(ctx, s.observer, EventStart, observability.LevelInfo, s.name, map[string]any{
		"interval":      s.interval.String(),
		"initial_delay": s.initialDelay.String(),
	})
	defer observability.Emit(context.WithoutCancel(ctx), s.observer, EventStop, observability.LevelInfo, s.name, nil)

	delay := time.NewTimer(s.initialDelay)
	defer delay.Stop()

	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}
	s.run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.run(ctx)
		}
	}
}

// run invokes the task once. A panicking task is reported and the loop
// keeps its schedule.
func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			observability.Emit(ctx, s.observer, EventTaskError, observability.LevelError, s.name, map[string]any{
				"error": fmt.Errorf("%w: %v", ErrTaskPanic, r).Error(),
			})
		}
	}()
	s.task()
}
