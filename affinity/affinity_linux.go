//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting thread CPU affinity.
// Uses sched_setaffinity directly via golang.org/x/sys/unix, avoiding cgo
// so the package cross-compiles without a C toolchain. Callers that want
// the affinity to stick must have already pinned the calling goroutine to
// its OS thread with runtime.LockOSThread — sched_setaffinity(2) affects
// the calling thread only, and Go may otherwise reschedule the goroutine
// onto a different thread on the next blocking call.

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// setAffinityPlatform sets the calling OS thread's affinity to a given CPU for Linux.
func setAffinityPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity failed: %w", err)
	}
	return nil
}
