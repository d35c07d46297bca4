// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package probe defines the capability layer a physical debug probe
// exposes to the target controller (internal/controller). The spec does
// not prescribe the wire details of any specific probe family —
// DebugWire, JTAG, PDI, UPDI — only that every capability here is total
// (it always returns, never silently no-ops) and that failures are
// classified into one of four kinds.
package probe

import (
	"context"
	"fmt"

	"github.com/avrdbg/avrdebugd/internal/target"
)

// ErrorKind classifies a probe-layer failure the way the teacher's
// arch.Architecture keeps per-architecture behavior as data: the
// controller and engine branch on Kind, never on a specific probe
// family's error type.
type ErrorKind int

const (
	Transport ErrorKind = iota
	Protocol
	Timeout
	Unsupported
)

func (k ErrorKind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Protocol:
		return "protocol"
	case Timeout:
		return "timeout"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is returned by every Session method that fails.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("probe: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("probe: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, kind ErrorKind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// State is the raw halted/running signal a probe can observe. The
// controller enriches this with a stop-cause (which breakpoint, which
// signal) that the probe layer itself cannot know.
type State int

const (
	StateUnknown State = iota
	StateRunning
	StateStopped
)

// PinState is one GPIO pin reading, supplementing the register/memory
// surface with the original source's pin-state inspection
// (RetrieveTargetPinStates.hpp / SetTargetPinState.hpp), exposed only
// through the monitor-command surface (SPEC_FULL.md §12.3).
type PinState struct {
	Name string
	High bool
}

// Session is the capability set a concrete probe family (DebugWire,
// JTAG, PDI, UPDI) must implement in full. Every method is total: it
// must return an *Error rather than silently doing nothing when a
// capability genuinely cannot apply (Kind == Unsupported).
type Session interface {
	Activate(ctx context.Context) (*target.Descriptor, error)
	Deactivate(ctx context.Context) error

	Halt(ctx context.Context) error
	Resume(ctx context.Context, from *uint32) error
	Step(ctx context.Context) error
	Reset(ctx context.Context) error

	Read(ctx context.Context, space target.Space, addr uint32, length uint32) ([]byte, error)
	Write(ctx context.Context, space target.Space, addr uint32, data []byte) error

	ReadPC(ctx context.Context) (uint32, error)
	WritePC(ctx context.Context, addr uint32) error

	SetHWBreakpoint(ctx context.Context, slot int, addr uint32) error
	ClearHWBreakpoint(ctx context.Context, slot int) error

	PollState(ctx context.Context) (State, error)
	SignOn(ctx context.Context) error
	DeviceID(ctx context.Context) ([3]byte, error)

	ReadPinStates(ctx context.Context) ([]PinState, error)
	WritePinState(ctx context.Context, name string, high bool) error
}
