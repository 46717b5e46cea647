// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral event selector interface for cross-platform IO multiplexing.
// A Selector is level-triggered: a fd registered for Read stays ready on every
// Poll call until the caller drains it to wouldBlock, regardless of backend.

package reactor

import "time"

// Interest is a bitmask of readiness a caller wants notified about.
type Interest uint8

const (
	// Read is set when the caller wants readability notifications.
	Read Interest = 1 << iota
	// Write is set when the caller wants writability notifications.
	Write
)

// Callback is invoked once per ready fd with the interest bits that fired.
// Implementations must not block inside a Callback; Poll dispatches it
// synchronously from within the polling goroutine, and an unrecovered
// panic inside it propagates out of Poll and kills that goroutine — this
// package has no failure sink of its own to route it to. Callers that run
// on top of something that does (e.g. core.CPU) should install a
// recovering wrapper around cb before calling Register.
type Callback func(fd uintptr, ready Interest)

// Selector multiplexes readiness across registered file descriptors.
// Register/SetInterest/Unregister/Poll/Close are not safe to call
// concurrently from multiple goroutines; the owning CPU serializes access.
type Selector interface {
	// Register adds fd to the watch set with the given interest and
	// installs cb to be invoked on readiness.
	Register(fd uintptr, interest Interest, cb Callback) error

	// SetInterest changes the interest mask for an already-registered fd.
	// Callers should only call this on a transition (empty <-> non-empty
	// write queue) to avoid syscall churn; see design notes on interest
	// hysteresis.
	SetInterest(fd uintptr, interest Interest) error

	// Unregister removes fd from the watch set.
	Unregister(fd uintptr) error

	// Poll blocks up to timeout waiting for readiness, dispatching each
	// ready fd's Callback before returning. timeout < 0 blocks indefinitely;
	// timeout == 0 polls without blocking. Returns the number of fds
	// dispatched.
	Poll(timeout time.Duration) (n int, err error)

	// Close releases the underlying OS resource (epoll fd / IOCP handle).
	Close() error
}

// NewSelector constructs the platform-appropriate Selector.
func NewSelector() (Selector, error) {
	return newSelector()
}
