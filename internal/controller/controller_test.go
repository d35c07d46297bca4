// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/avrdbg/avrdebugd/internal/probe"
	"github.com/avrdbg/avrdebugd/internal/target"
)

// fakeSession is a minimal in-memory probe.Session stand-in, the same
// role golang-debug's test fakes play for its ptrace-backed Process.
type fakeSession struct {
	mu       sync.Mutex
	desc     *target.Descriptor
	pc       uint32
	regs     [32]byte
	io       [256]byte
	state    probe.State
	stopOnce int // PollState reports Stopped after this many calls, 0 = never
	polls    int
}

func newFakeSession(desc *target.Descriptor) *fakeSession {
	return &fakeSession{desc: desc, state: probe.StateRunning}
}

func (f *fakeSession) Activate(ctx context.Context) (*target.Descriptor, error) { return f.desc, nil }
func (f *fakeSession) Deactivate(ctx context.Context) error                     { return nil }
func (f *fakeSession) SignOn(ctx context.Context) error                        { return nil }
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
	f.state = probe.StateRunning
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
func (f *fakeSession) SetHWBreakpoint(ctx context.Context, slot int, addr uint32) error {
	return nil
}
func (f *fakeSession) ClearHWBreakpoint(ctx context.Context, slot int) error { return nil }
func (f *fakeSession) PollState(ctx context.Context) (probe.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.stopOnce > 0 && f.polls >= f.stopOnce {
		f.state = probe.StateStopped
	}
	return f.state, nil
}
func (f *fakeSession) ReadPinStates(ctx context.Context) ([]probe.PinState, error) { return nil, nil }
func (f *fakeSession) WritePinState(ctx context.Context, name string, high bool) error {
	return nil
}

func testDesc() *target.Descriptor {
	return &target.Descriptor{
		Name:                    "ATmega328P",
		Signature:               [3]byte{0x1E, 0x95, 0x0F},
		FlashSize:               0x8000,
		FlashPageSize:           128,
		RamOffset:               target.DefaultRamOffset,
		RamSize:                 0x800,
		EepromOffset:            target.DefaultEepromOffset,
		EepromSize:              0x400,
		SREGOffset:              0x3F,
		SPOffset:                0x3D,
		PCWidth:                 16,
		HardwareBreakpointSlots: 2,
	}
}

func TestActivateDeactivate(t *testing.T) {
	c := New(newFakeSession(testDesc()))
	if c.CurrentState() != Suspended {
		t.Fatalf("expected Suspended before Activate")
	}
	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if c.CurrentState() != Active {
		t.Fatalf("expected Active after Activate")
	}
	if _, err := c.Describe(); err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if err := c.Deactivate(context.Background()); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if c.CurrentState() != Suspended {
		t.Fatalf("expected Suspended after Deactivate")
	}
}

func TestCommandsRequireActive(t *testing.T) {
	c := New(newFakeSession(testDesc()))
	if _, err := c.Describe(); err != ErrNotActive {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if err := c.Resume(context.Background(), nil); err != ErrNotActive {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestStepReportsLandingAddress(t *testing.T) {
	c := New(newFakeSession(testDesc()))
	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer c.Deactivate(context.Background())

	st, err := c.Step(context.Background(), nil)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if st.Run != Stopped || st.Cause != CauseStep {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.Address != 2 {
		t.Fatalf("expected PC advanced to 2, got %#x", st.Address)
	}
}

func TestPollLoopPublishesStopExactlyOnce(t *testing.T) {
	fs := newFakeSession(testDesc())
	fs.stopOnce = 2
	c := New(fs)
	c.PollInterval = 10 * time.Millisecond
	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer c.Deactivate(context.Background())

	if err := c.Resume(context.Background(), nil); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := c.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if st.Run != Stopped {
		t.Fatalf("expected Stopped, got %+v", st)
	}

	// A second Await within the same episode must not redeliver; a
	// fresh Resume is required before another stop is published.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := c.Await(ctx2); err == nil {
		t.Fatalf("expected no second delivery within the same episode")
	}
}

func TestBreakpointSlotExhaustion(t *testing.T) {
	c := New(newFakeSession(testDesc()))
	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer c.Deactivate(context.Background())

	s0, err := c.SetBreakpoint(context.Background(), 0x100)
	if err != nil {
		t.Fatalf("SetBreakpoint: %v", err)
	}
	if _, err := c.SetBreakpoint(context.Background(), 0x200); err != nil {
		t.Fatalf("SetBreakpoint: %v", err)
	}
	if _, err := c.SetBreakpoint(context.Background(), 0x300); err != ErrNoFreeSlot {
		t.Fatalf("expected ErrNoFreeSlot, got %v", err)
	}
	if err := c.ClearBreakpoint(context.Background(), s0); err != nil {
		t.Fatalf("ClearBreakpoint: %v", err)
	}
	if _, err := c.SetBreakpoint(context.Background(), 0x300); err != nil {
		t.Fatalf("expected slot reuse to succeed, got %v", err)
	}
}

func TestRegisterRoundTrip(t *testing.T) {
	c := New(newFakeSession(testDesc()))
	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer c.Deactivate(context.Background())

	var in Registers
	in.GP[16] = 0x2A
	in.SREG = 0x80
	in.SP = 0x08FF
	in.PC = 0x1234
	if err := c.WriteRegisters(context.Background(), in); err != nil {
		t.Fatalf("WriteRegisters: %v", err)
	}
	out, err := c.ReadRegisters(context.Background())
	if err != nil {
		t.Fatalf("ReadRegisters: %v", err)
	}
	if out.GP[16] != 0x2A || out.SREG != 0x80 || out.SP != 0x08FF || out.PC != 0x1234 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
