// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package core

// Kind discriminates the outcome of a repeat/loop step or a read(consumer)
// invocation.
type Kind uint8

const (
	// Continue asks repeat/loop to re-schedule the step; for a read
	// consumer it asks InputStream to wait for more bytes.
	Continue Kind = iota
	// Stop ends a repeat/loop with no payload.
	Stop
	// StopWith ends a repeat/loop, or a read consumer, carrying a value.
	StopWith
)

// Status is the result of one repeat/loop step, or of one read(consumer)
// invocation. It is the Go rendering of the CONTINUE / STOP / STOP_WITH(value)
// union described by the component design.
type Status struct {
	kind  Kind
	value any
}

// ContinueStatus requests another iteration.
func ContinueStatus() Status { return Status{kind: Continue} }

// StopStatus ends the loop with no payload.
func StopStatus() Status { return Status{kind: Stop} }

// StopWithStatus ends the loop, carrying v as the terminal value.
func StopWithStatus(v any) Status { return Status{kind: StopWith, value: v} }

// Kind reports which of CONTINUE / STOP / STOP_WITH this Status is.
func (s Status) Kind() Kind { return s.kind }

// Value returns the payload attached to a STOP_WITH status. It is the
// zero value (nil) for CONTINUE and STOP.
func (s Status) Value() any { return s.value }
