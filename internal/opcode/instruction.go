// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package opcode decodes AVR8 program-memory words into instructions.
//
// The decoder is table-driven in the style of arch.Architecture from
// golang.org/x/debug: a small constant table describes every recognized
// bit pattern, and decoding is a linear walk that stops at the first
// match. Unlike a general-purpose architecture table, the AVR core only
// ever targets one ISA, so the table has no per-arch selection; it exists
// so the decoder can be data, not code, which keeps the skip-instruction
// and flow-change flags auditable in one place.
package opcode

// Operands holds the subset of decoded fields a given instruction uses.
// Nil means "not applicable to this instruction."
type Operands struct {
	Rd            *uint8  // destination register index, 0-31
	Rr            *uint8  // source register index, 0-31
	IOAddr        *uint8  // I/O space address, 0-63
	Bit           *uint8  // bit index, 0-7
	Immediate     *int32  // constant operand (K fields, q displacements folded in separately)
	Displacement  *int8   // q displacement for Y+q / Z+q addressing
	TargetAddress *uint32 // JMP/CALL: target byte address; LDS/STS: 16-bit data address (relative branches use Immediate)
}

// Instruction is one decoded AVR instruction.
type Instruction struct {
	// Mnemonic identifies the instruction. For condition-coded branches
	// (BRBS/BRBC) and status-bit instructions (BSET/BCLR) this is the
	// generic form; Operands.Bit carries the specific condition/flag.
	Mnemonic string

	// Word is the raw first instruction word, preserved so a caller can
	// reinterpret an UndefinedOrErased word if it has out-of-band
	// knowledge that makes that meaningful (see the 0xFFFF edge case).
	Word uint16

	// ByteSize is 2 or 4.
	ByteSize int

	// MayChangeFlow is true for any instruction that can set the
	// program counter to something other than PC+ByteSize: branches,
	// jumps, calls, RET/RETI, IJMP/EIJMP, ICALL/EICALL.
	MayChangeFlow bool

	// MaySkipNext is true exactly for CPSE, SBRC, SBRS, SBIC, SBIS: the
	// five instructions that conditionally skip the following
	// instruction word(s). A single-stepper must decode the
	// instruction at PC+ByteSize to learn how far to skip.
	MaySkipNext bool

	Operands Operands
}

// Undefined reports whether this is the synthetic UndefinedOrErased
// instruction produced for an all-ones word.
func (i *Instruction) Undefined() bool {
	return i.Mnemonic == "UndefinedOrErased"
}

func u8(v uint8) *uint8 {
	x := uint8(v)
	return &x
}

func i32(v int32) *int32 {
	x := v
	return &x
}

func i8(v int8) *int8 {
	x := v
	return &x
}

func u32(v uint32) *uint32 {
	x := v
	return &x
}
