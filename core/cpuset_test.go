// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package core

import (
	"testing"
	"time"
)

func buildTestSet(t *testing.T, cpuIDs ...int) *CPUSet {
	t.Helper()
	b := NewCPUSetBuilder()
	b.AddPack(cpuIDs...)
	set, err := b.Build()
	if err != nil {
		t.Fatalf("build cpuset: %v", err)
	}
	set.Start()
	t.Cleanup(set.Halt)
	return set
}

// TestSequenceAcrossCPUs is scenario S5: even indices are constant futures
// on CPU 0, odd indices are tasks scheduled on CPU 2; sequence on CPU 0
// resolves to [0,1,2,3,4] in input order.
func TestSequenceAcrossCPUs(t *testing.T) {
	set := buildTestSet(t, 0, 1, 2)
	cpu0, _ := set.CPU(0)
	cpu2, _ := set.CPU(2)

	futures := make([]*Future[int], 5)
	for i := range futures {
		i := i
		if i%2 == 0 {
			f := NewFuture[int](cpu0)
			_ = f.SetValue(i)
			futures[i] = f
		} else {
			futures[i] = Schedule(cpu2, func() (int, error) { return i, nil })
		}
	}

	out := Sequence(cpu0, futures)
	done := make(chan []int, 1)
	out.OnSuccess(func(v []int) { done <- v })
	out.OnFailure(func(err error) { t.Fatalf("sequence failed: %v", err) })

	select {
	case got := <-done:
		want := []int{0, 1, 2, 3, 4}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cross-CPU sequence never resolved")
	}
}

// TestPackGetCPUReachesEveryCPU guards against the ported Pack.GetCPU bug:
// every CPU in a multi-CPU pack must be reachable, including the last one.
func TestPackGetCPUReachesEveryCPU(t *testing.T) {
	set := buildTestSet(t, 0, 1, 2, 3)
	pack := set.Packs()[0]

	seen := make(map[int]bool)
	for i := 0; i < 2000 && len(seen) < len(pack.CPUs()); i++ {
		seen[pack.GetCPU().ID()] = true
	}
	if len(seen) != len(pack.CPUs()) {
		t.Fatalf("GetCPU reached %d of %d CPUs: %v", len(seen), len(pack.CPUs()), seen)
	}
}

// TestFlatMapCrossCPUDelivery exercises FlatMap when the inner future is
// owned by a different CPU than the outer one.
func TestFlatMapCrossCPUDelivery(t *testing.T) {
	set := buildTestSet(t, 0, 1)
	cpu0, _ := set.CPU(0)
	cpu1, _ := set.CPU(1)

	outer := Schedule(cpu0, func() (int, error) { return 10, nil })
	chained := FlatMap(outer, func(v int) *Future[int] {
		return Schedule(cpu1, func() (int, error) { return v * 2, nil })
	})

	done := make(chan int, 1)
	chained.OnSuccess(func(v int) { done <- v })
	chained.OnFailure(func(err error) { t.Fatalf("flatmap failed: %v", err) })

	select {
	case got := <-done:
		if got != 20 {
			t.Fatalf("got %d, want 20", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("flatmap never resolved")
	}
	if chained.CPU() != cpu0 {
		t.Fatal("chained future should keep origin-CPU affinity")
	}
}
