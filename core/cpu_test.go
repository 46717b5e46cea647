// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package core

import (
	"errors"
	"testing"
	"time"
)

// TestRepeatStopsAfterExpectedIterations is scenario S1: a step closing
// over a counter initialized to 10, returning STOP at 0 and CONTINUE
// (counter--) otherwise, must run exactly 11 times before the outer
// future resolves.
func TestRepeatStopsAfterExpectedIterations(t *testing.T) {
	c := newTestCPU(t)

	counter := 10
	runs := 0
	step := func() *Future[Status] {
		f := NewFuture[Status](c)
		runs++
		if counter == 0 {
			_ = f.SetValue(StopStatus())
		} else {
			counter--
			_ = f.SetValue(ContinueStatus())
		}
		return f
	}

	out := Repeat(c, step)
	done := make(chan struct{})
	out.OnSuccess(func(Void) { close(done) })
	out.OnFailure(func(err error) { t.Fatalf("repeat failed: %v", err) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("repeat never resolved")
	}
	if runs != 11 {
		t.Fatalf("step ran %d times, want 11", runs)
	}
}

// TestSleepFiresAtOrAfterDeadline is a narrower form of S4: a sleep's
// callback must not run before submission time + delay.
func TestSleepFiresAtOrAfterDeadline(t *testing.T) {
	c := newTestCPU(t)

	const delay = 30 * time.Millisecond
	start := time.Now()
	f := Sleep(c, delay, func() (time.Time, error) { return time.Now(), nil })

	done := make(chan time.Time, 1)
	f.OnSuccess(func(v time.Time) { done <- v })
	select {
	case fired := <-done:
		if fired.Sub(start) < delay {
			t.Fatalf("fired after %v, want >= %v", fired.Sub(start), delay)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sleep never fired")
	}
}

// TestSequenceOrdersResultsByInputIndex is scenario S5's single-CPU shape:
// five futures resolved out of order must still report results in input
// order.
func TestSequenceOrdersResultsByInputIndex(t *testing.T) {
	c := newTestCPU(t)

	futures := make([]*Future[int], 5)
	for i := range futures {
		futures[i] = NewFuture[int](c)
	}
	// Resolve in reverse order to prove Sequence doesn't just forward
	// completion order.
	for i := len(futures) - 1; i >= 0; i-- {
		_ = futures[i].SetValue(i)
	}

	out := Sequence(c, futures)
	done := make(chan []int, 1)
	out.OnSuccess(func(v []int) { done <- v })
	out.OnFailure(func(err error) { t.Fatalf("sequence failed: %v", err) })

	select {
	case got := <-done:
		want := []int{0, 1, 2, 3, 4}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sequence never resolved")
	}
}

// TestSequenceFirstFailureByIndexWins is scenario S6: a failure at index 1
// must terminate the aggregate with that failure even if the later indices'
// futures resolve successfully first.
func TestSequenceFirstFailureByIndexWins(t *testing.T) {
	c := newTestCPU(t)

	wantErr := errors.New("illegal argument")
	futures := make([]*Future[int], 5)
	for i := range futures {
		futures[i] = NewFuture[int](c)
	}
	_ = futures[4].SetValue(4)
	_ = futures[3].SetValue(3)
	_ = futures[2].SetValue(2)
	_ = futures[1].SetFailure(wantErr)
	_ = futures[0].SetValue(0)

	out := Sequence(c, futures)
	done := make(chan error, 1)
	out.OnFailure(func(err error) { done <- err })
	out.OnSuccess(func(v []int) { t.Fatalf("sequence succeeded with %v, want failure", v) })

	select {
	case err := <-done:
		if !errors.Is(err, wantErr) {
			t.Fatalf("got %v, want %v", err, wantErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sequence never resolved")
	}
}

// TestHaltFailsPendingFutures covers property 7: every still-pending future
// fails with ErrShutdown once Halt returns.
func TestHaltFailsPendingFutures(t *testing.T) {
	c := newTestCPUNoCleanup(t)

	f := Schedule(c, func() (int, error) {
		// Never actually runs if Halt races the submission; either way
		// the future must end up failed with ErrShutdown or resolved.
		return 1, nil
	})
	c.Halt()

	done := make(chan error, 1)
	f.OnFailure(func(err error) { done <- err })
	f.OnSuccess(func(int) { done <- nil })

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, ErrShutdown) {
			t.Fatalf("got %v, want ErrShutdown or success", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("future never resolved after halt")
	}
}
