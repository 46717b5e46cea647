// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package buffer implements the external byte-buffer contract the core
// runtime assumes: a reference-counted region with independent reader and
// writer cursors (mirroring the mark/reset-index discipline of a Netty
// ByteBuf), big-endian primitive encoding, and a NUMA-tagged pool.
package buffer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
)

// ErrInsufficientData is returned by the fixed-width Read* accessors when
// fewer than the required number of bytes are currently readable.
var ErrInsufficientData = errors.New("buffer: insufficient readable data")

// Buffer is a resliceable, reference-counted memory region with reader and
// writer cursors. readerIndex <= writerIndex <= len(data) always holds;
// Len reports writerIndex-readerIndex and ReadableBytes returns that view.
type Buffer struct {
	data   []byte
	mark   int
	reader int
	writer int

	refs     int32
	pool     *Pool
	class    int // size-class index within pool, -1 if unpooled
	numaNode int
}

// NewBuffer wraps an existing byte slice as a standalone, unpooled Buffer
// with refcount 1 and the writer cursor at len(data) (the slice is treated
// as fully written, ready to read back).
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data, writer: len(data), refs: 1, class: -1, numaNode: -1}
}

// ReadableBytes returns the current view available to read.
func (b *Buffer) ReadableBytes() []byte {
	return b.data[b.reader:b.writer]
}

// Len reports how many bytes are currently readable.
func (b *Buffer) Len() int { return b.writer - b.reader }

// ReaderIndex returns the current read cursor.
func (b *Buffer) ReaderIndex() int { return b.reader }

// WriterIndex returns the current write cursor.
func (b *Buffer) WriterIndex() int { return b.writer }

// MarkReaderIndex saves the current reader cursor for a later ResetReaderIndex.
// A read(consumer) that returns CONTINUE (needs more bytes) uses this to
// roll the cursor back to where the attempt started.
func (b *Buffer) MarkReaderIndex() { b.mark = b.reader }

// ResetReaderIndex restores the reader cursor to the last MarkReaderIndex.
func (b *Buffer) ResetReaderIndex() { b.reader = b.mark }

// NUMANode reports the NUMA node this buffer was allocated from, or -1 for
// an unpooled buffer with no node affinity.
func (b *Buffer) NUMANode() int { return b.numaNode }

// Retain increments the reference count. Paired Release calls are required
// to return the buffer to its pool.
func (b *Buffer) Retain() { atomic.AddInt32(&b.refs, 1) }

// Release decrements the reference count; at zero, the buffer is returned
// to its pool (or simply dropped, if unpooled). Using a Buffer after its
// refcount reaches zero is a programming error.
func (b *Buffer) Release() {
	if atomic.AddInt32(&b.refs, -1) > 0 {
		return
	}
	if b.pool != nil {
		b.pool.put(b)
	}
}

// grow ensures writer+n bytes of capacity, extending data in place.
func (b *Buffer) grow(n int) {
	need := b.writer + n
	if need <= cap(b.data) {
		b.data = b.data[:cap(b.data)]
		return
	}
	grown := make([]byte, need, need*2)
	copy(grown, b.data[:b.writer])
	b.data = grown
}

// WriteBytes appends p at the writer cursor, growing the backing array if
// needed, and advances the writer cursor by len(p).
func (b *Buffer) WriteBytes(p []byte) {
	b.grow(len(p))
	copy(b.data[b.writer:], p)
	b.writer += len(p)
}

// ReadBytes reads up to n bytes from r into the buffer at the writer
// cursor, advancing the writer cursor by however many bytes were actually
// read. It returns core.ErrWouldBlock-compatible errors unmodified so the
// caller's non-blocking read loop can distinguish would-block from a real
// I/O failure or EOF.
func (b *Buffer) ReadBytes(r io.Reader, n int) (int, error) {
	b.grow(n)
	read, err := r.Read(b.data[b.writer : b.writer+n])
	b.writer += read
	return read, err
}

// DrainTo writes the full readable view to w in one call, advancing the
// reader cursor by however many bytes w actually accepted — a partial
// write (n < Len()) is not an error by itself; the caller's transmit loop
// is expected to requeue the remainder.
func (b *Buffer) DrainTo(w io.Writer) (int, error) {
	n, err := w.Write(b.ReadableBytes())
	b.reader += n
	return n, err
}

// ReadBytesN copies out the next n readable bytes and advances the reader
// cursor by n.
func (b *Buffer) ReadBytesN(n int) ([]byte, error) {
	if err := b.requireReadable(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b.data[b.reader:b.reader+n])
	b.reader += n
	return out, nil
}

// DiscardReadBytes slides any remaining readable bytes down to the start of
// the backing array and resets the writer cursor accordingly, so a
// long-lived buffer that has been fully or partially drained does not keep
// growing its backing array on every subsequent write.
func (b *Buffer) DiscardReadBytes() {
	if b.reader == 0 {
		return
	}
	remaining := b.writer - b.reader
	copy(b.data, b.data[b.reader:b.writer])
	b.reader = 0
	b.writer = remaining
	b.mark = 0
}

func (b *Buffer) requireReadable(n int) error {
	if b.Len() < n {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientData, n, b.Len())
	}
	return nil
}

// ReadShort decodes a big-endian uint16 and advances the reader cursor.
func (b *Buffer) ReadShort() (uint16, error) {
	if err := b.requireReadable(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(b.data[b.reader:])
	b.reader += 2
	return v, nil
}

// ReadInt decodes a big-endian uint32 and advances the reader cursor.
func (b *Buffer) ReadInt() (uint32, error) {
	if err := b.requireReadable(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(b.data[b.reader:])
	b.reader += 4
	return v, nil
}

// ReadLong decodes a big-endian uint64 and advances the reader cursor.
func (b *Buffer) ReadLong() (uint64, error) {
	if err := b.requireReadable(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(b.data[b.reader:])
	b.reader += 8
	return v, nil
}

// ReadFloat decodes a big-endian IEEE-754 float32 and advances the reader
// cursor.
func (b *Buffer) ReadFloat() (float32, error) {
	v, err := b.ReadInt()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadDouble decodes a big-endian IEEE-754 float64 and advances the reader
// cursor.
func (b *Buffer) ReadDouble() (float64, error) {
	v, err := b.ReadLong()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// WriteShort appends a big-endian uint16.
func (b *Buffer) WriteShort(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.WriteBytes(tmp[:])
}

// WriteInt appends a big-endian uint32.
func (b *Buffer) WriteInt(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.WriteBytes(tmp[:])
}

// WriteLong appends a big-endian uint64.
func (b *Buffer) WriteLong(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.WriteBytes(tmp[:])
}

// WriteFloat appends a big-endian IEEE-754 float32.
func (b *Buffer) WriteFloat(v float32) {
	b.WriteInt(math.Float32bits(v))
}

// WriteDouble appends a big-endian IEEE-754 float64.
func (b *Buffer) WriteDouble(v float64) {
	b.WriteLong(math.Float64bits(v))
}

// Copy returns an independent deep copy of the readable view.
func (b *Buffer) Copy() []byte {
	dst := make([]byte, b.Len())
	copy(dst, b.ReadableBytes())
	return dst
}
