// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package buffer

import (
	"bytes"
	"testing"
)

func TestReadWriteCursorsAdvanceIndependently(t *testing.T) {
	b := NewBuffer(nil)
	b.WriteBytes([]byte("hello"))
	b.WriteBytes([]byte(" world"))

	if got := string(b.ReadableBytes()); got != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}

	raw, err := b.ReadBytesN(5)
	if err != nil {
		t.Fatalf("ReadBytesN: %v", err)
	}
	if string(raw) != "hello" {
		t.Fatalf("got %q, want %q", raw, "hello")
	}
	if got := string(b.ReadableBytes()); got != " world" {
		t.Fatalf("got %q, want %q", got, " world")
	}
}

func TestMarkAndResetReaderIndex(t *testing.T) {
	b := NewBuffer([]byte("0123456789"))
	b.MarkReaderIndex()
	if _, err := b.ReadBytesN(4); err != nil {
		t.Fatalf("ReadBytesN: %v", err)
	}
	b.ResetReaderIndex()
	if b.ReaderIndex() != 0 {
		t.Fatalf("reader index %d, want 0 after reset", b.ReaderIndex())
	}
	if got := string(b.ReadableBytes()); got != "0123456789" {
		t.Fatalf("got %q, want full buffer after reset", got)
	}
}

func TestBigEndianPrimitiveRoundTrip(t *testing.T) {
	b := NewBuffer(nil)
	b.WriteShort(0x1234)
	b.WriteInt(0xdeadbeef)
	b.WriteLong(0x0102030405060708)
	b.WriteFloat(3.25)
	b.WriteDouble(6.5)

	if v, err := b.ReadShort(); err != nil || v != 0x1234 {
		t.Fatalf("ReadShort: %v, %#x", err, v)
	}
	if v, err := b.ReadInt(); err != nil || v != 0xdeadbeef {
		t.Fatalf("ReadInt: %v, %#x", err, v)
	}
	if v, err := b.ReadLong(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("ReadLong: %v, %#x", err, v)
	}
	if v, err := b.ReadFloat(); err != nil || v != 3.25 {
		t.Fatalf("ReadFloat: %v, %v", err, v)
	}
	if v, err := b.ReadDouble(); err != nil || v != 6.5 {
		t.Fatalf("ReadDouble: %v, %v", err, v)
	}
}

func TestReadShortInsufficientData(t *testing.T) {
	b := NewBuffer([]byte{0x01})
	if _, err := b.ReadShort(); err == nil {
		t.Fatal("want ErrInsufficientData, got nil")
	}
}

func TestDrainToAdvancesReaderByBytesAccepted(t *testing.T) {
	b := NewBuffer([]byte("abcdef"))
	var w bytes.Buffer
	n, err := b.DrainTo(&w)
	if err != nil {
		t.Fatalf("DrainTo: %v", err)
	}
	if n != 6 || w.String() != "abcdef" {
		t.Fatalf("got n=%d w=%q", n, w.String())
	}
	if b.Len() != 0 {
		t.Fatalf("buffer should be fully drained, Len()=%d", b.Len())
	}
}

func TestDiscardReadBytesCompactsBuffer(t *testing.T) {
	b := NewBuffer([]byte("0123456789"))
	if _, err := b.ReadBytesN(6); err != nil {
		t.Fatalf("ReadBytesN: %v", err)
	}
	b.DiscardReadBytes()
	if b.ReaderIndex() != 0 {
		t.Fatalf("reader index %d, want 0 after discard", b.ReaderIndex())
	}
	if got := string(b.ReadableBytes()); got != "6789" {
		t.Fatalf("got %q, want %q", got, "6789")
	}
}

func TestRetainReleaseReturnsToPool(t *testing.T) {
	p := NewPool(-1)
	b := p.Get(64)
	b.WriteBytes([]byte("x"))
	b.Retain()
	b.Release()
	if p.Stats().TotalFree != 0 {
		t.Fatalf("buffer released while still retained once")
	}
	b.Release()
	if p.Stats().TotalFree != 1 {
		t.Fatalf("want TotalFree=1 after final release, got %d", p.Stats().TotalFree)
	}
}

func TestSizeClassForPicksSmallestFit(t *testing.T) {
	class, idx := sizeClassFor(3000)
	if sizeClasses[idx] < 3000 {
		t.Fatalf("picked class %d smaller than requested size", sizeClasses[idx])
	}
	if idx > 0 && sizeClasses[idx-1] >= 3000 {
		t.Fatalf("class %d is not the smallest fit for 3000", class)
	}
}
