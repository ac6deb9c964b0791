package jsstore

import "context"

// Future is the pending outcome of a submitted request. It completes
// exactly once, through either the result or the error side, when the
// dispatch engine routes the request's completion.
type Future[T any] struct {
	done   chan struct{}
	result T
	err    error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) complete(v T) {
	f.result = v
	close(f.done)
}

func (f *Future[T]) fail(err error) {
	f.err = err
	close(f.done)
}

// Await blocks until the request completes or ctx is done. Cancelling
// ctx abandons the wait, not the request: it still runs to completion
// in the engine.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed when the outcome is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }
