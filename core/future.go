// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package core

import "sync"

type futureState uint8

const (
	pending futureState = iota
	resolvedValue
	resolvedFailure
)

// Future is a single-consumer, single-producer continuation cell bound to
// an owning CPU. It transitions PENDING -> VALUE or PENDING -> FAILURE
// exactly once; the transition and any installed continuation always run
// on the owning CPU, never inline on an arbitrary caller's goroutine once
// the future is already terminal.
//
// A small mutex guards the state fields below. Under the intended usage
// all resolution and continuation installation originate from the owning
// CPU's own loop goroutine, so the lock is never contended in practice;
// it exists only to make misuse (e.g. resolving from the wrong goroutine)
// safe rather than racy.
type Future[T any] struct {
	cpu *CPU

	mu    sync.Mutex
	st    futureState
	val   T
	err   error
	onOK  func(T)
	onErr func(error)
}

// NewFuture constructs a pending Future owned by cpu.
func NewFuture[T any](cpu *CPU) *Future[T] {
	return &Future[T]{cpu: cpu}
}

// CPU returns the Future's owning CPU.
func (f *Future[T]) CPU() *CPU { return f.cpu }

// SetValue resolves the future with v. Returns an *InvariantError if the
// future is already terminal.
func (f *Future[T]) SetValue(v T) error {
	f.mu.Lock()
	if f.st != pending {
		f.mu.Unlock()
		return NewInvariantError("future-already-resolved", "SetValue called on a terminal future", nil)
	}
	f.st = resolvedValue
	f.val = v
	cb := f.onOK
	f.mu.Unlock()
	if cb != nil {
		cb(v)
	}
	return nil
}

// SetFailure resolves the future with err. Returns an *InvariantError if
// the future is already terminal.
func (f *Future[T]) SetFailure(err error) error {
	f.mu.Lock()
	if f.st != pending {
		f.mu.Unlock()
		return NewInvariantError("future-already-resolved", "SetFailure called on a terminal future", nil)
	}
	f.st = resolvedFailure
	f.err = err
	cb := f.onErr
	f.mu.Unlock()
	if cb != nil {
		cb(err)
	}
	return nil
}

// OnSuccess installs a continuation invoked with the resolved value. If the
// future is already resolved with a value, the continuation is scheduled
// on the owning CPU's task queue rather than called inline, preserving
// loop re-entrancy rules. If the future already failed, the continuation
// is never called.
func (f *Future[T]) OnSuccess(cb func(T)) {
	f.mu.Lock()
	switch f.st {
	case resolvedValue:
		v := f.val
		f.mu.Unlock()
		f.cpu.enqueueLocal(task{run: func() { cb(v) }})
		return
	case resolvedFailure:
		f.mu.Unlock()
		return
	default:
		f.onOK = cb
		f.mu.Unlock()
	}
}

// OnFailure installs a continuation invoked with the failure. Mirror of
// OnSuccess for the failure path.
func (f *Future[T]) OnFailure(cb func(error)) {
	f.mu.Lock()
	switch f.st {
	case resolvedFailure:
		err := f.err
		f.mu.Unlock()
		f.cpu.enqueueLocal(task{run: func() { cb(err) }})
		return
	case resolvedValue:
		f.mu.Unlock()
		return
	default:
		f.onErr = cb
		f.mu.Unlock()
	}
}

// AndThen installs a success continuation and returns f for chaining.
func (f *Future[T]) AndThen(cb func(T)) *Future[T] {
	f.OnSuccess(cb)
	return f
}

// Check installs a failure continuation and returns f for chaining.
func (f *Future[T]) Check(cb func(error)) *Future[T] {
	f.OnFailure(cb)
	return f
}

// Map returns a new Future[U] on the same CPU. On success it applies f and
// resolves the new future with the result; on failure it propagates the
// failure unchanged. f always runs on the owning CPU.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := NewFuture[U](f.cpu)
	f.OnSuccess(func(v T) {
		u, err := fn(v)
		if err != nil {
			_ = out.SetFailure(err)
			return
		}
		_ = out.SetValue(u)
	})
	f.OnFailure(func(err error) {
		_ = out.SetFailure(err)
	})
	return out
}

// FlatMap returns a new Future[U] on the same CPU as f. On success it runs
// fn; if fn's returned future is owned by a different CPU, the value (or
// failure) is delivered back to f's owning CPU via cross-CPU submission so
// the resulting Future[U] keeps its origin-CPU affinity.
func FlatMap[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	out := NewFuture[U](f.cpu)
	f.OnSuccess(func(v T) {
		inner := fn(v)
		deliver := func(u U, err error) {
			if err != nil {
				_ = out.SetFailure(err)
				return
			}
			_ = out.SetValue(u)
		}
		if inner.cpu == f.cpu {
			inner.OnSuccess(func(u U) { deliver(u, nil) })
			inner.OnFailure(func(err error) { deliver(*new(U), err) })
			return
		}
		inner.OnSuccess(func(u U) {
			f.cpu.submitCrossCPU(func() { deliver(u, nil) })
		})
		inner.OnFailure(func(err error) {
			f.cpu.submitCrossCPU(func() { deliver(*new(U), err) })
		})
	})
	f.OnFailure(func(err error) {
		_ = out.SetFailure(err)
	})
	return out
}
