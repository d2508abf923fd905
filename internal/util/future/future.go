// Package future holds the result of a task running on another goroutine.
package future

import (
	"context"
)

// Future completes once, when the function passed to New returns.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// New starts fn on its own goroutine.
func New[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn()
	}()
	return f
}

// Await blocks until fn has returned and yields its result.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.val, f.err
}

// AwaitContext is Await bounded by ctx. When ctx ends first the zero value
// and ctx.Err() are returned; the task keeps running.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }
