// Package future provides a single-assignment value with a readiness signal.
//
// A Future moves from pending to ready exactly once. The producer resolves it
// with a value or an error; the consumer waits on the readiness signal and then
// takes the outcome exactly once.
package future

import (
	"sync"
	"sync/atomic"
)

// Pollable exposes a readiness signal that is closed once.
type Pollable interface {
	Ready() <-chan struct{}
}

// Future is a two-state (pending, ready) container for one outcome.
type Future[T any] struct {
	ready chan struct{}
	once  sync.Once
	taken atomic.Bool

	val T
	err error
}

// New returns a pending Future.
func New[T any]() *Future[T] {
	return &Future[T]{ready: make(chan struct{})}
}

// Resolve stores the outcome and signals readiness. Only the first call has any
// effect; it reports whether this call resolved the future.
func (f *Future[T]) Resolve(v T, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.val = v
		f.err = err
		close(f.ready)
		resolved = true
	})
	return resolved
}

// Ready returns the readiness signal.
func (f *Future[T]) Ready() <-chan struct{} {
	return f.ready
}

// IsReady reports whether the future has been resolved, without blocking.
func (f *Future[T]) IsReady() bool {
	select {
	case <-f.ready:
		return true
	default:
		return false
	}
}

// Get takes the outcome. It panics when called before the future is ready or
// when the outcome has already been taken.
func (f *Future[T]) Get() (T, error) {
	if !f.IsReady() {
		panic("future: Get called before ready")
	}
	if !f.taken.CompareAndSwap(false, true) {
		panic("future: outcome already taken")
	}
	return f.val, f.err
}

// Wait blocks until the future is ready and takes the outcome.
func (f *Future[T]) Wait() (T, error) {
	Block(f)
	return f.Get()
}

// Block suspends the calling goroutine until p is ready. It waits on exactly
// one handle.
func Block(p Pollable) {
	<-p.Ready()
}
