// Package tests
// Author: momentics <momentics@gmail.com>
//
// Integration tests exercising the runtime end to end over real loopback
// TCP, mirroring the teacher's own tests module split from the main one.

package tests

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-core/buffer"
	"github.com/momentics/hioload-core/core"
	"github.com/momentics/hioload-core/netio"
)

func startCPUSet(t *testing.T, cpuIDs ...int) *core.CPUSet {
	t.Helper()
	b := core.NewCPUSetBuilder()
	b.AddPack(cpuIDs...)
	set, err := b.Build()
	if err != nil {
		t.Fatalf("build cpuset: %v", err)
	}
	set.Start()
	t.Cleanup(set.Halt)
	return set
}

func dialWithRetry(t *testing.T, addr string) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	for i := 0; i < 100; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("dial %s: %v", addr, err)
	return nil
}

// sumConsumeStep reads a 4-byte length L followed by L/4 big-endian uint32s
// and stops with their sum.
func sumConsumeStep(ch *netio.Channel, onSum func(uint32), onErr func(error)) {
	countFuture := netio.ReadConsume[uint32](ch.In(), func(buf *buffer.Buffer) (core.Status, error) {
		if buf.Len() < 4 {
			return core.ContinueStatus(), nil
		}
		length, err := buf.ReadInt()
		if err != nil {
			return core.Status{}, err
		}
		return core.StopWithStatus(length / 4), nil
	})
	countFuture.OnFailure(onErr)
	countFuture.OnSuccess(func(count uint32) {
		sumFuture := netio.ReadConsume[uint32](ch.In(), func(buf *buffer.Buffer) (core.Status, error) {
			// CONTINUE rewinds the cursor, so wait for the whole body.
			if buf.Len() < 4*int(count) {
				return core.ContinueStatus(), nil
			}
			var total uint32
			for i := uint32(0); i < count; i++ {
				v, err := buf.ReadInt()
				if err != nil {
					return core.Status{}, err
				}
				total += v
			}
			return core.StopWithStatus(total), nil
		})
		sumFuture.OnFailure(onErr)
		sumFuture.OnSuccess(onSum)
	})
}

// TestEchoSumScenario is scenario S2: a client sends three 4-byte integer
// frames [i, i+1, i+2] for i in {0,...,9}, one connection per request, and
// expects the reply 3i+3 each time.
func TestEchoSumScenario(t *testing.T) {
	const addr = "127.0.0.1:31337"
	set := startCPUSet(t, 0)
	cpu0, _ := set.CPU(0)

	onAccept := func(conn net.Conn, target *core.CPU) {
		cf := netio.NewChannel(target, conn)
		cf.OnFailure(func(err error) { _ = conn.Close() })
		cf.OnSuccess(func(ch *netio.Channel) {
			sumConsumeStep(ch, func(sum uint32) {
				reply := buffer.NewBuffer(nil)
				reply.WriteInt(sum)
				ch.Out().WriteAndFlush(reply)
			}, func(err error) { ch.Close(err) })
		})
	}
	if err := cpu0.Listen(addr, onAccept, func(error) {}); err != nil {
		t.Fatalf("listen: %v", err)
	}

	for i := 0; i < 10; i++ {
		conn := dialWithRetry(t, addr)

		var frame [16]byte
		binary.BigEndian.PutUint32(frame[0:4], 12)
		binary.BigEndian.PutUint32(frame[4:8], uint32(i))
		binary.BigEndian.PutUint32(frame[8:12], uint32(i+1))
		binary.BigEndian.PutUint32(frame[12:16], uint32(i+2))
		if _, err := conn.Write(frame[:]); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var resp [4]byte
		if _, err := readFullTests(conn, resp[:]); err != nil {
			t.Fatalf("read reply %d: %v", i, err)
		}
		got := binary.BigEndian.Uint32(resp[:])
		want := uint32(3*i + 3)
		if got != want {
			t.Fatalf("request %d: got sum %d, want %d", i, got, want)
		}
		conn.Close()
	}
}

func readFullTests(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
