//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based Selector implementation. Registrations are
// level-triggered (no EPOLLET): a readable/writable fd keeps firing on
// every Poll until the caller drives it to EAGAIN, matching the
// level-triggered contract required by reactor.Selector.

package reactor

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

type linuxSelector struct {
	epfd int

	mu   sync.Mutex
	cbs  map[int32]Callback
	mask map[int32]Interest
}

func newSelector() (Selector, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &linuxSelector{
		epfd: epfd,
		cbs:  make(map[int32]Callback),
		mask: make(map[int32]Interest),
	}, nil
}

func toEpollEvents(in Interest) uint32 {
	var ev uint32
	if in&Read != 0 {
		ev |= unix.EPOLLIN
	}
	if in&Write != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (s *linuxSelector) Register(fd uintptr, interest Interest, cb Callback) error {
	f := int32(fd)
	ev := &unix.EpollEvent{Events: toEpollEvents(interest), Fd: f}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, int(fd), ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl add: %w", err)
	}

	s.mu.Lock()
	s.cbs[f] = cb
	s.mask[f] = interest
	s.mu.Unlock()
	return nil
}

func (s *linuxSelector) SetInterest(fd uintptr, interest Interest) error {
	f := int32(fd)
	ev := &unix.EpollEvent{Events: toEpollEvents(interest), Fd: f}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, int(fd), ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl mod: %w", err)
	}

	s.mu.Lock()
	s.mask[f] = interest
	s.mu.Unlock()
	return nil
}

func (s *linuxSelector) Unregister(fd uintptr) error {
	f := int32(fd)
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		return fmt.Errorf("reactor: epoll_ctl del: %w", err)
	}

	s.mu.Lock()
	delete(s.cbs, f)
	delete(s.mask, f)
	s.mu.Unlock()
	return nil
}

func (s *linuxSelector) Poll(timeout time.Duration) (int, error) {
	const maxEvents = 256
	var raw [maxEvents]unix.EpollEvent

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}

	n, err := unix.EpollWait(s.epfd, raw[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("reactor: epoll_wait: %w", err)
	}

	dispatched := 0
	for i := 0; i < n; i++ {
		fd := raw[i].Fd

		var ready Interest
		if raw[i].Events&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			ready |= Read
		}
		if raw[i].Events&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			ready |= Write
		}

		s.mu.Lock()
		cb, ok := s.cbs[fd]
		s.mu.Unlock()
		if !ok {
			continue
		}

		cb(uintptr(fd), ready)
		dispatched++
	}

	return dispatched, nil
}

func (s *linuxSelector) Close() error {
	return unix.Close(s.epfd)
}
