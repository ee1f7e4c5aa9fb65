package openai

import (
	"context"
	"sync"
)

// Future is the pending result of one completion. It resolves exactly once,
// with either the accumulated text or an error.
type Future struct {
	done   chan struct{}
	once   sync.Once
	text   string
	err    error
	cancel context.CancelFunc
}

func newFuture(cancel context.CancelFunc) *Future {
	return &Future{done: make(chan struct{}), cancel: cancel}
}

// resolve stores the outcome if the future is still pending. Returns false if it was already resolved.
func (f *Future) resolve(text string, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.text = text
		f.err = err
		resolved = true
		close(f.done)
	})
	return resolved
}

// Done is closed when the future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the future resolves or ctx is done. Abandoning the wait
// does not stop the request; call Cancel for that.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.text, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Resolved reports whether the future has an outcome.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Cancel aborts the underlying request and resolves a pending future with
// context.Canceled. Safe to call any number of times, including after resolution.
func (f *Future) Cancel() {
	f.resolve("", context.Canceled)
	if f.cancel != nil {
		f.cancel()
	}
}
