// Package taskset tracks a group of goroutines that share a cancellation scope.
//
// A TaskSet is aborted as a whole and then joined task by task. Joining classifies
// every task outcome so the owner can apply a per-class policy: cancellations are
// expected, errors are reported, panics are re-raised on the joining goroutine.
package taskset

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Outcome classifies how a task terminated.
type Outcome int

const (
	// Completed means the task returned nil before the set was aborted.
	Completed Outcome = iota
	// Cancelled means the task observed the abort and returned.
	Cancelled
	// Errored means the task returned a non-cancellation error.
	Errored
	// Panicked means the task panicked. The panic value is kept in Result.Panic.
	Panicked
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Errored:
		return "errored"
	case Panicked:
		return "panicked"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Task is a unit of work run by a TaskSet. It must return once ctx is cancelled.
type Task func(ctx context.Context) error

// Result describes the termination of a single task.
type Result struct {
	Name    string
	Outcome Outcome
	Err     error
	Panic   any
	Stack   []byte
}

// PanicError carries a recovered task panic through a re-panic, keeping the original stack.
type PanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %q panicked: %v\n%s", e.Task, e.Value, e.Stack)
}

type task struct {
	name   string
	done   chan struct{}
	result Result
}

// TaskSet is a group of goroutines sharing one cancellation scope.
type TaskSet struct {
	ctx     context.Context
	cancel  context.CancelFunc
	aborted *atomic.Bool

	mu    sync.Mutex
	tasks []*task
}

// New returns an empty TaskSet whose tasks are cancelled when parent is cancelled or AbortAll is called.
func New(parent context.Context) *TaskSet {
	ctx, cancel := context.WithCancel(parent)
	return &TaskSet{
		ctx:     ctx,
		cancel:  cancel,
		aborted: atomic.NewBool(false),
	}
}

// Spawn starts fn in its own goroutine under the set's cancellation scope.
// Spawning into an aborted set starts a task that observes a cancelled context immediately.
func (s *TaskSet) Spawn(name string, fn Task) {
	t := &task{
		name: name,
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.result = Result{Name: name, Outcome: Panicked, Panic: r, Stack: debug.Stack()}
			}
		}()

		err := fn(s.ctx)
		t.result = s.classify(name, err)
	}()
}

func (s *TaskSet) classify(name string, err error) Result {
	switch {
	case err == nil && s.ctx.Err() == nil:
		return Result{Name: name, Outcome: Completed}
	case err == nil:
		return Result{Name: name, Outcome: Cancelled}
	case errors.Is(err, context.Canceled) && s.ctx.Err() != nil:
		return Result{Name: name, Outcome: Cancelled, Err: err}
	default:
		return Result{Name: name, Outcome: Errored, Err: err}
	}
}

// Len returns the number of tasks spawned so far.
func (s *TaskSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// AbortAll requests cancellation of every task in the set. It does not wait.
func (s *TaskSet) AbortAll() {
	s.aborted.Store(true)
	s.cancel()
}

// Aborted reports whether AbortAll has been called.
func (s *TaskSet) Aborted() bool {
	return s.aborted.Load()
}

// Join waits for every task to terminate and returns their results in spawn order.
func (s *TaskSet) Join() []Result {
	s.mu.Lock()
	tasks := make([]*task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.Unlock()

	results := make([]Result, 0, len(tasks))
	for _, t := range tasks {
		<-t.done
		results = append(results, t.result)
	}
	return results
}

// AbortAndDrain aborts the set, joins every task and applies the shutdown policy:
// cancelled and completed tasks are ignored, errors are logged as warnings and
// the first panic is re-raised once all tasks have been joined.
func (s *TaskSet) AbortAndDrain(log zerolog.Logger) []Result {
	s.AbortAll()
	results := s.Join()

	var firstPanic *PanicError
	for _, res := range results {
		switch res.Outcome {
		case Errored:
			log.Warn().Err(res.Err).Str("task", res.Name).Msg("task returned error during shutdown")
		case Panicked:
			log.Error().Str("task", res.Name).Interface("panic", res.Panic).Msg("task panicked")
			if firstPanic == nil {
				firstPanic = &PanicError{Task: res.Name, Value: res.Panic, Stack: res.Stack}
			}
		}
	}
	if firstPanic != nil {
		panic(firstPanic)
	}
	return results
}
