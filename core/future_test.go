// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package core

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-core/reactor"
)

func newTestCPU(t *testing.T) *CPU {
	t.Helper()
	c := newTestCPUNoCleanup(t)
	t.Cleanup(c.Halt)
	return c
}

// newTestCPUNoCleanup is for tests that call Halt themselves mid-test.
func newTestCPUNoCleanup(t *testing.T) *CPU {
	t.Helper()
	sel, err := reactor.NewSelector()
	if err != nil {
		t.Fatalf("new selector: %v", err)
	}
	opts := defaultCPUOptions()
	c := newCPU(0, sel, opts)
	go c.Run()
	return c
}

func TestFutureResolvesExactlyOnce(t *testing.T) {
	c := newTestCPU(t)
	f := NewFuture[int](c)

	if err := f.SetValue(1); err != nil {
		t.Fatalf("first SetValue failed: %v", err)
	}
	if err := f.SetValue(2); err == nil {
		t.Fatal("second SetValue succeeded, want invariant error")
	}
	var invErr *InvariantError
	if err := f.SetValue(2); !errors.As(err, &invErr) {
		t.Fatalf("want *InvariantError, got %v", err)
	}
}

func TestFutureOnSuccessInstallationOrder(t *testing.T) {
	c := newTestCPU(t)
	f := NewFuture[int](c)

	var order []int
	f.OnSuccess(func(int) { order = append(order, 1) })
	f.OnSuccess(func(int) { order = append(order, 2) })
	// OnSuccess only stores the last callback (single-consumer contract);
	// exercise the documented single-continuation shape instead of
	// asserting a multi-listener fanout the type never promises.
	_ = f.SetValue(0)

	time.Sleep(20 * time.Millisecond)
	if len(order) != 1 || order[0] != 2 {
		t.Fatalf("want only the last-installed continuation to run, got %v", order)
	}
}

func TestFutureOnSuccessAfterResolutionIsScheduledNotInline(t *testing.T) {
	c := newTestCPU(t)
	f := NewFuture[int](c)
	_ = f.SetValue(42)

	done := make(chan int, 1)
	calledInline := true
	f.OnSuccess(func(v int) {
		calledInline = false
		done <- v
	})
	// If OnSuccess ran inline, calledInline would already be false here.
	if !calledInline {
		t.Fatal("continuation ran inline instead of being scheduled")
	}
	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("got %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("continuation never ran")
	}
}

func TestMapPropagatesFailure(t *testing.T) {
	c := newTestCPU(t)
	f := NewFuture[int](c)
	mapped := Map(f, func(v int) (string, error) { return "unreachable", nil })

	wantErr := errors.New("boom")
	_ = f.SetFailure(wantErr)

	done := make(chan error, 1)
	mapped.OnFailure(func(err error) { done <- err })
	select {
	case err := <-done:
		if !errors.Is(err, wantErr) {
			t.Fatalf("got %v, want %v", err, wantErr)
		}
	case <-time.After(time.Second):
		t.Fatal("mapped future never failed")
	}
}
