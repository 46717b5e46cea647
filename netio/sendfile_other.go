//go:build !linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package netio

import (
	"io"
	"os"
)

// sendfile is the portable fallback for platforms without a zero-copy
// sendfile(2) equivalent wired in: it reads the requested window into a
// bounded buffer and writes it with a plain non-blocking write, so
// FileTxTask's retry-on-partial-write contract still holds even though the
// copy through user space is not free.
func sendfile(dstFD uintptr, src *os.File, offset int64, count int) (int, error) {
	const chunk = 64 * 1024
	if count > chunk {
		count = chunk
	}
	buf := make([]byte, count)
	n, err := src.ReadAt(buf, offset)
	if n == 0 && err != nil {
		if err == io.EOF {
			// End of file: report zero bytes, as sendfile(2) does.
			return 0, nil
		}
		return 0, err
	}
	return writeNonBlocking(dstFD, buf[:n])
}
