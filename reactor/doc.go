// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the core poll-mode Selector abstraction and
// cross-platform implementations for epoll (Linux) and IOCP (Windows).
// A Selector is the one piece of OS-level readiness multiplexing the
// core.CPU event loop depends on; everything above it (timers, futures,
// streams) is platform-neutral.
package reactor
