package lobby

import (
	"context"
	"sync"
)

// Task is the pending result of an asynchronous directory call
// It resolves only after its continuation has run on the owner's tick loop.
type Task[T any] struct {
	once   sync.Once
	done   chan struct{}
	result T
	err    error
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// Failed returns an already-resolved task carrying err
func Failed[T any](err error) *Task[T] {
	t := newTask[T]()
	var zero T
	t.resolve(zero, err)
	return t
}

// Resolved returns an already-resolved successful task
func Resolved[T any](v T) *Task[T] {
	t := newTask[T]()
	t.resolve(v, nil)
	return t
}

func (t *Task[T]) resolve(v T, err error) {
	t.once.Do(func() {
		t.result = v
		t.err = err
		close(t.done)
	})
}

// Done is closed once the task has resolved
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// IsDone reports whether the task has resolved
func (t *Task[T]) IsDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome; it blocks until the task resolves
func (t *Task[T]) Result() (T, error) {
	<-t.done
	return t.result, t.err
}

// Wait blocks until the task resolves or ctx is done
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
