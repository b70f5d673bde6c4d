package stage

import "context"

// Inflight shares the result of one running call with every caller that
// arrives while it runs. The owner calls Finish exactly once.
type Inflight[T any] struct {
	done  chan struct{}
	value T
}

func NewInflight[T any]() *Inflight[T] {
	return &Inflight[T]{done: make(chan struct{})}
}

// Finish publishes value and releases all waiters.
func (f *Inflight[T]) Finish(value T) {
	f.value = value
	close(f.done)
}

// Wait blocks until Finish is called or ctx ends.
func (f *Inflight[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done reports whether Finish has been called.
func (f *Inflight[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
