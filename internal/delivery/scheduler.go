package delivery

import (
	"context"
	"sync"
	"time"
)

// Task is one scheduled unit of work owned by a slot. Cancelling the
// task, or the scheduler it came from, stops it from firing again.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the task. Safe to call repeatedly.
func (t *Task) Cancel() {
	t.cancel()
}

// Scheduler runs cooperative timers scoped to one slot's lifetime.
// Every task dies with the scheduler's context, so a slot teardown or
// URL change can never leak a timer.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	tasks []*Task
}

// NewScheduler creates a scheduler tied to parent's lifetime.
func NewScheduler(parent context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// After runs fn once after d, unless cancelled first.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	ctx, cancel := context.WithCancel(s.ctx)
	task := &Task{cancel: cancel, done: make(chan struct{})}
	s.track(task)

	go func() {
		defer close(task.done)
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			fn()
		case <-ctx.Done():
		}
	}()

	return task
}

// Every runs fn on a fixed interval until cancelled.
func (s *Scheduler) Every(d time.Duration, fn func()) *Task {
	ctx, cancel := context.WithCancel(s.ctx)
	task := &Task{cancel: cancel, done: make(chan struct{})}
	s.track(task)

	go func() {
		defer close(task.done)
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-ctx.Done():
				return
			}
		}
	}()

	return task
}

// Stop cancels every task and the scheduler itself.
func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	for _, task := range tasks {
		<-task.done
	}
}

func (s *Scheduler) track(task *Task) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
}
