// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package core

import "errors"

// Sentinel errors delivered to futures and read/write continuations.
var (
	// ErrShutdown is the failure every still-pending future receives when
	// its owning CPU is halted.
	ErrShutdown = errors.New("core: cpu shut down")
	// ErrClosed is delivered to pending readers and queued transmit
	// futures when their Channel is closed.
	ErrClosed = errors.New("core: channel closed")
	// ErrWouldBlock signals a non-blocking I/O operation found nothing
	// ready; it never escapes to application code, only between the
	// stream and its triggerRx/triggerTx loop.
	ErrWouldBlock = errors.New("core: operation would block")
	// ErrEndOfStream is delivered to a pending reader when the peer
	// closes its write side before the reader is satisfied.
	ErrEndOfStream = errors.New("core: end of stream")
	// ErrNoSelector is returned by netio.NewChannel when the target CPU
	// has no reactor.Selector. CPUSetBuilder.Build reports a selector
	// construction failure with the selector's own error instead.
	ErrNoSelector = errors.New("core: no selector available on this platform")
)

// InvariantError reports a programming error: a violation of one of the
// single-owner or single-resolution invariants the runtime depends on.
// It is fatal and carries no recovery path — the caller broke a contract
// the scheduler cannot safely continue under.
type InvariantError struct {
	// Code names the violated invariant, e.g. "future-already-resolved".
	Code string
	// Message is a short human-readable description.
	Message string
	// Context carries diagnostic values (CPU id, future pointer, etc.).
	Context map[string]any
}

func (e *InvariantError) Error() string {
	if e.Message == "" {
		return "core: invariant violation: " + e.Code
	}
	return "core: invariant violation: " + e.Code + ": " + e.Message
}

// NewInvariantError constructs an InvariantError with the given code and
// message, attaching ctx as diagnostic context (may be nil).
func NewInvariantError(code, message string, ctx map[string]any) *InvariantError {
	return &InvariantError{Code: code, Message: message, Context: ctx}
}
