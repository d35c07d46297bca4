// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gdbserver

import (
	"context"

	"github.com/avrdbg/avrdebugd/internal/command"
	"github.com/avrdbg/avrdebugd/internal/controller"
)

// encodeRegs lays registers out as avr-gdb's target description expects
// them in a 'g'/'G' packet: r0-r31 (1 byte each), SREG (1 byte), SP (2
// bytes little-endian), PC (4 bytes little-endian, word address * 2 —
// GDB's avr port represents PC in byte units though the hardware counts
// words, which this server's flat byte-addressed flash already matches).
func encodeRegs(r controller.Registers) []byte {
	buf := make([]byte, 0, 32+1+2+4)
	buf = append(buf, r.GP[:]...)
	buf = append(buf, r.SREG)
	buf = append(buf, byte(r.SP), byte(r.SP>>8))
	buf = append(buf, byte(r.PC), byte(r.PC>>8), byte(r.PC>>16), byte(r.PC>>24))
	return buf
}

func decodeRegs(data []byte) (controller.Registers, bool) {
	var r controller.Registers
	if len(data) != 32+1+2+4 {
		return r, false
	}
	copy(r.GP[:], data[:32])
	r.SREG = data[32]
	r.SP = uint16(data[33]) | uint16(data[34])<<8
	r.PC = uint32(data[35]) | uint32(data[36])<<8 | uint32(data[37])<<16 | uint32(data[38])<<24
	return r, true
}

func (e *Engine) handleReadRegisters(ctx context.Context) []byte {
	regs, err := e.ctrl.ReadRegisters(ctx)
	if err != nil {
		return e.classify(err, "E03")
	}
	return hexEncode(encodeRegs(regs))
}

func (e *Engine) handleWriteRegisters(ctx context.Context, cmd command.Command) []byte {
	regs, ok := decodeRegs(cmd.Data)
	if !ok {
		return []byte("E03")
	}
	if err := e.ctrl.WriteRegisters(ctx, regs); err != nil {
		return e.classify(err, "E03")
	}
	return []byte("OK")
}

func (e *Engine) handleReadRegister(ctx context.Context, cmd command.Command) []byte {
	regs, err := e.ctrl.ReadRegisters(ctx)
	if err != nil {
		return e.classify(err, "E03")
	}
	full := encodeRegs(regs)
	width, offset, ok := registerSlice(cmd.RegisterIndex)
	if !ok || offset+width > len(full) {
		return []byte("E03")
	}
	return hexEncode(full[offset : offset+width])
}

func (e *Engine) handleWriteRegister(ctx context.Context, cmd command.Command) []byte {
	regs, err := e.ctrl.ReadRegisters(ctx)
	if err != nil {
		return e.classify(err, "E03")
	}
	full := encodeRegs(regs)
	width, offset, ok := registerSlice(cmd.RegisterIndex)
	if !ok || offset+width > len(full) || len(cmd.RegisterValue) != width {
		return []byte("E03")
	}
	copy(full[offset:], cmd.RegisterValue)
	newRegs, ok := decodeRegs(full)
	if !ok {
		return []byte("E03")
	}
	if err := e.ctrl.WriteRegisters(ctx, newRegs); err != nil {
		return e.classify(err, "E03")
	}
	return []byte("OK")
}

// registerSlice returns the (width, offset) of register idx within the
// encodeRegs layout: 0-31 = r0-r31 (1 byte), 32 = SREG, 33 = SP (2
// bytes), 34 = PC (4 bytes) — the numbering avr-gdb's target.xml uses.
func registerSlice(idx int) (width, offset int, ok bool) {
	switch {
	case idx >= 0 && idx < 32:
		return 1, idx, true
	case idx == 32:
		return 1, 32, true
	case idx == 33:
		return 2, 33, true
	case idx == 34:
		return 4, 35, true
	default:
		return 0, 0, false
	}
}
