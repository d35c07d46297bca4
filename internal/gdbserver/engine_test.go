// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gdbserver

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/avrdbg/avrdebugd/internal/controller"
	"github.com/avrdbg/avrdebugd/internal/probe"
	"github.com/avrdbg/avrdebugd/internal/target"
)

// fakeSession is a minimal in-memory probe.Session, the same role the
// controller package's own fakeSession plays, reused here (with real
// flash/RAM/EEPROM backing arrays instead of that package's simpler
// zero-filled reads) so breakpoint overlay round trips can be asserted
// end to end over the wire, the way Orizon's gdbserver_test drives a
// real Server.HandleConn over net.Pipe rather than mocking the engine.
type fakeSession struct {
	mu    sync.Mutex
	desc  *target.Descriptor
	pc    uint32
	regs  [32]byte
	io    [256]byte
	flash []byte
	state probe.State
}

func newFakeSession(desc *target.Descriptor) *fakeSession {
	return &fakeSession{desc: desc, state: probe.StateStopped, flash: make([]byte, desc.FlashSize)}
}

func (f *fakeSession) Activate(ctx context.Context) (*target.Descriptor, error) { return f.desc, nil }
func (f *fakeSession) Deactivate(ctx context.Context) error                     { return nil }
func (f *fakeSession) SignOn(ctx context.Context) error                         { return nil }
func (f *fakeSession) DeviceID(ctx context.Context) ([3]byte, error)            { return f.desc.Signature, nil }

func (f *fakeSession) Halt(ctx context.Context) error {
	f.mu.Lock()
	f.state = probe.StateStopped
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Resume(ctx context.Context, from *uint32) error {
	f.mu.Lock()
	if from != nil {
		f.pc = *from
	}
	f.state = probe.StateStopped // resolves on the very next poll, for deterministic tests
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Step(ctx context.Context) error {
	f.mu.Lock()
	f.pc += 2
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Reset(ctx context.Context) error {
	f.mu.Lock()
	f.pc = 0
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) Read(ctx context.Context, space target.Space, addr uint32, length uint32) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch space {
	case target.Registers:
		return append([]byte(nil), f.regs[addr:addr+length]...), nil
	case target.Io:
		return append([]byte(nil), f.io[addr:addr+length]...), nil
	case target.Flash:
		return append([]byte(nil), f.flash[addr:addr+length]...), nil
	default:
		return make([]byte, length), nil
	}
}

func (f *fakeSession) Write(ctx context.Context, space target.Space, addr uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch space {
	case target.Registers:
		copy(f.regs[addr:], data)
	case target.Io:
		copy(f.io[addr:], data)
	case target.Flash:
		copy(f.flash[addr:], data)
	}
	return nil
}

func (f *fakeSession) ReadPC(ctx context.Context) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pc, nil
}

func (f *fakeSession) WritePC(ctx context.Context, addr uint32) error {
	f.mu.Lock()
	f.pc = addr
	f.mu.Unlock()
	return nil
}

func (f *fakeSession) SetHWBreakpoint(ctx context.Context, slot int, addr uint32) error { return nil }
func (f *fakeSession) ClearHWBreakpoint(ctx context.Context, slot int) error            { return nil }

func (f *fakeSession) PollState(ctx context.Context) (probe.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeSession) ReadPinStates(ctx context.Context) ([]probe.PinState, error) { return nil, nil }
func (f *fakeSession) WritePinState(ctx context.Context, name string, high bool) error {
	return nil
}

func testDesc() *target.Descriptor {
	return &target.Descriptor{
		Name:          "ATmega328P",
		Signature:     [3]byte{0x1E, 0x95, 0x0F},
		FlashSize:     0x8000,
		FlashPageSize: 128,
		RamOffset:     target.DefaultRamOffset,
		RamSize:       0x800,
		EepromOffset:  target.DefaultEepromOffset,
		EepromSize:    0x400,
		SREGOffset:    0x3F,
		SPOffset:      0x3D,
		PCWidth:       4,
	}
}

// newTestEngine wires a real controller (and engine) over a real
// net.Pipe, against a fakeSession. It returns the client-facing
// net.Conn plus a teardown func.
func newTestEngine(t *testing.T) (net.Conn, func()) {
	t.Helper()
	ctrl := controller.New(newFakeSession(testDesc()))
	ctrl.PollInterval = 5 * time.Millisecond
	if err := ctrl.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	client, server := net.Pipe()
	eng := New(server, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Serve(ctx)
		close(done)
	}()

	return client, func() {
		cancel()
		client.Close()
		<-done
	}
}

func sendPacket(t *testing.T, w *bufio.Writer, payload string) {
	t.Helper()
	sum := byte(0)
	for i := 0; i < len(payload); i++ {
		sum += payload[i]
	}
	if _, err := fmt.Fprintf(w, "$%s#%02x", payload, sum); err != nil {
		t.Fatalf("writing packet: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

// readReply consumes an optional leading '+'/'-' ack byte, then one
// framed packet, returning its payload.
func readReply(t *testing.T, r *bufio.Reader) (ack byte, payload string) {
	t.Helper()
	b, err := r.ReadByte()
	if err != nil {
		t.Fatalf("reading ack: %v", err)
	}
	if b == '+' || b == '-' {
		ack = b
	} else if err := r.UnreadByte(); err != nil {
		t.Fatalf("unread: %v", err)
	}
	for {
		ch, err := r.ReadByte()
		if err != nil {
			t.Fatalf("seeking frame start: %v", err)
		}
		if ch == '$' {
			break
		}
	}
	var data []byte
	for {
		ch, err := r.ReadByte()
		if err != nil {
			t.Fatalf("reading frame body: %v", err)
		}
		if ch == '#' {
			break
		}
		data = append(data, ch)
	}
	cs := make([]byte, 2)
	if _, err := r.Read(cs); err != nil {
		t.Fatalf("reading checksum: %v", err)
	}
	return ack, string(data)
}

// TestHandshakeAdvertisesPacketSize drives scenario 1: qSupported gets
// answered with this server's fixed capability string (§6).
func TestHandshakeAdvertisesPacketSize(t *testing.T) {
	conn, teardown := newTestEngine(t)
	defer teardown()

	w := bufio.NewWriter(conn)
	r := bufio.NewReader(conn)

	sendPacket(t, w, "qSupported:multiprocess+;swbreak+;hwbreak+;qRelocInsn+;no-resumed+")
	ack, payload := readReply(t, r)
	if ack != '+' {
		t.Fatalf("expected ack before qSupported reply")
	}
	want := "PacketSize=8192;swbreak+;hwbreak+;qXfer:features:read+;QStartNoAckMode+"
	if payload != want {
		t.Fatalf("got %q, want %q", payload, want)
	}
}

// TestNoAckNegotiation drives scenario 6: after QStartNoAckMode, the
// server's OK is its last '+' emission.
func TestNoAckNegotiation(t *testing.T) {
	conn, teardown := newTestEngine(t)
	defer teardown()

	w := bufio.NewWriter(conn)
	r := bufio.NewReader(conn)

	sendPacket(t, w, "QStartNoAckMode")
	ack, payload := readReply(t, r)
	if ack != '+' || payload != "OK" {
		t.Fatalf("got ack=%q payload=%q, want +/OK", ack, payload)
	}

	// Subsequent traffic carries no ack byte in either direction.
	sendPacket(t, w, "?")
	ack2, payload2 := readReply(t, r)
	if ack2 != 0 {
		t.Fatalf("unexpected ack byte %q after no-ack negotiation", ack2)
	}
	if payload2 != "S00" {
		t.Fatalf("got %q, want S00 (nothing stopped yet)", payload2)
	}
}

// TestMemoryReadCrossingBoundaryIsE01 drives scenario 2's overlap case.
func TestMemoryReadCrossingBoundaryIsE01(t *testing.T) {
	conn, teardown := newTestEngine(t)
	defer teardown()

	w := bufio.NewWriter(conn)
	r := bufio.NewReader(conn)

	sendPacket(t, w, "m7FFE,8")
	_, payload := readReply(t, r)
	if payload != "E01" {
		t.Fatalf("got %q, want E01 for a flash/RAM-crossing read", payload)
	}
}

// TestSoftwareBreakpointLifecycle drives scenario 3: insert restores
// byte-identical flash on removal (property P5).
func TestSoftwareBreakpointLifecycle(t *testing.T) {
	conn, teardown := newTestEngine(t)
	defer teardown()

	w := bufio.NewWriter(conn)
	r := bufio.NewReader(conn)

	sendPacket(t, w, "m200,2")
	_, before := readReply(t, r)

	sendPacket(t, w, "Z0,200,2")
	_, payload := readReply(t, r)
	if payload != "OK" {
		t.Fatalf("insert breakpoint: got %q, want OK", payload)
	}

	sendPacket(t, w, "m200,2")
	_, overlaid := readReply(t, r)
	if overlaid == before {
		t.Fatalf("expected flash bytes at 0x200 to change after breakpoint insert")
	}
	if overlaid != "9895" {
		t.Fatalf("got overlay bytes %q, want the BREAK opcode 9895 (little-endian 0x9598)", overlaid)
	}

	sendPacket(t, w, "z0,200,2")
	_, payload = readReply(t, r)
	if payload != "OK" {
		t.Fatalf("remove breakpoint: got %q, want OK", payload)
	}

	sendPacket(t, w, "m200,2")
	_, restored := readReply(t, r)
	if restored != before {
		t.Fatalf("flash at 0x200 not restored: got %q, want %q", restored, before)
	}
}
