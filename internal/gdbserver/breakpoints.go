// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gdbserver

import (
	"context"
	"encoding/binary"

	"github.com/avrdbg/avrdebugd/internal/command"
	"github.com/avrdbg/avrdebugd/internal/target"
)

// breakOpcodeBytes is the BREAK instruction (0x9598) in the little-
// endian word order AVR flash stores instructions in.
var breakOpcodeBytes = func() [2]byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], 0x9598)
	return b
}()

// handleInsertBreakpoint implements Z0 (software) and Z1 (hardware).
// For Z0, the engine first tries a hardware slot (§4.3: "the engine
// asks the controller whether the target supports hardware
// breakpoints for this address range... when the hardware budget is
// exhausted it falls back to an overlay"); watchpoint types (2-4) are
// reported unsupported, per §4.2.
func (e *Engine) handleInsertBreakpoint(ctx context.Context, cmd command.Command) []byte {
	switch cmd.BreakpointKind {
	case command.BreakpointHardware:
		return e.insertHardware(ctx, cmd.BreakpointAddr)
	case command.BreakpointSoftware:
		return e.insertSoftware(ctx, cmd.BreakpointAddr)
	default:
		return []byte{} // watchpoints unsupported
	}
}

func (e *Engine) handleRemoveBreakpoint(ctx context.Context, cmd command.Command) []byte {
	switch cmd.BreakpointKind {
	case command.BreakpointHardware:
		return e.removeHardware(ctx, cmd.BreakpointAddr)
	case command.BreakpointSoftware:
		return e.removeSoftware(ctx, cmd.BreakpointAddr)
	default:
		return []byte{}
	}
}

func (e *Engine) insertHardware(ctx context.Context, addr uint32) []byte {
	e.mu.Lock()
	if _, exists := e.hw[addr]; exists {
		e.mu.Unlock()
		return []byte("OK")
	}
	e.mu.Unlock()

	slot, err := e.ctrl.SetBreakpoint(ctx, addr)
	if err != nil {
		return e.classify(err, "E02")
	}
	e.mu.Lock()
	e.hw[addr] = slot
	e.mu.Unlock()
	return []byte("OK")
}

func (e *Engine) removeHardware(ctx context.Context, addr uint32) []byte {
	e.mu.Lock()
	slot, exists := e.hw[addr]
	e.mu.Unlock()
	if !exists {
		return []byte("OK")
	}
	if err := e.ctrl.ClearBreakpoint(ctx, slot); err != nil {
		return e.classify(err, "E02")
	}
	e.mu.Lock()
	delete(e.hw, addr)
	e.mu.Unlock()
	return []byte("OK")
}

// insertSoftware plants a BREAK opcode overlay when no hardware slot
// is available, saving the original two bytes for restoration
// (invariant I3, property P5).
func (e *Engine) insertSoftware(ctx context.Context, addr uint32) []byte {
	e.mu.Lock()
	if _, exists := e.sw[addr]; exists {
		e.mu.Unlock()
		return []byte("OK")
	}
	e.mu.Unlock()

	if e.ctrl.CanUseHardwareBreakpoint() {
		if resp := e.insertHardware(ctx, addr); string(resp) == "OK" {
			return resp
		}
	}

	desc, err := e.ctrl.Describe()
	if err != nil {
		return e.classify(err, "E02")
	}
	original, err := e.ctrl.ReadMemory(ctx, target.Flash, addr, 2)
	if err != nil {
		return e.classify(err, "E02")
	}
	if len(original) != 2 {
		return []byte("E02")
	}
	overlay := &swOverlay{addr: addr}
	copy(overlay.original[:], original)

	patched := breakOpcodeBytes
	if err := e.writeFlashPaged(ctx, desc, addr, patched[:]); err != nil {
		return e.classify(err, "E02")
	}

	e.mu.Lock()
	e.sw[addr] = overlay
	e.mu.Unlock()
	return []byte("OK")
}

func (e *Engine) removeSoftware(ctx context.Context, addr uint32) []byte {
	e.mu.Lock()
	overlay, exists := e.sw[addr]
	e.mu.Unlock()
	if !exists {
		// Might have been satisfied via the hardware path instead.
		return e.removeHardware(ctx, addr)
	}

	desc, err := e.ctrl.Describe()
	if err != nil {
		return e.classify(err, "E02")
	}
	if err := e.writeFlashPaged(ctx, desc, addr, overlay.original[:]); err != nil {
		return e.classify(err, "E02")
	}
	e.mu.Lock()
	delete(e.sw, addr)
	e.mu.Unlock()
	return []byte("OK")
}
