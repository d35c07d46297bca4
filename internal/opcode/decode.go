// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package opcode

// BreakOpcode is the AVR BREAK instruction word, used to overlay a
// software breakpoint into flash. It decodes back through this table as
// the BREAK row, which keeps the engine's "write BREAK / decode what was
// there" logic symmetric.
const BreakOpcode uint16 = 0x9598

func bits(word uint16, hi, lo uint) uint16 {
	n := hi - lo + 1
	return (word >> lo) & ((1 << n) - 1)
}

// signExtend extends the low n bits of v, interpreted as a two's
// complement integer, to a full int32.
func signExtend(v uint32, n uint) int32 {
	shift := 32 - n
	return int32(v<<shift) >> shift
}

func pairBase(sel uint16) uint8 {
	return []uint8{24, 26, 28, 30}[sel&3]
}

// Decode decodes the instruction at word0 (and, if the instruction turns
// out to need it, word1). ok is false when word0 does not correspond to
// any recognized pattern at all (should not happen against an exhaustive
// table, but callers must not assume total coverage of arbitrary input),
// or when a two-word instruction is the last word available in the
// caller's buffer (word1Present is false) — the spec calls this case
// "None" rather than an error, since the stream must still be walkable.
func Decode(word0 uint16, word1 uint16, word1Present bool) (instr *Instruction, ok bool) {
	if word0 == 0xFFFF {
		return &Instruction{Mnemonic: "UndefinedOrErased", Word: word0, ByteSize: 2}, true
	}
	for i := range table {
		r := &table[i]
		if word0&r.mask != r.pattern {
			continue
		}
		if !matchesExtra(r, word0) {
			continue
		}
		if r.size == 4 && !word1Present {
			return nil, false
		}
		return build(r, word0, word1), true
	}
	return nil, false
}

// matchesExtra applies the one constraint the mask/pattern pair cannot
// express: the Rd==Rr equality that turns a general two-register opcode
// into its "Same" alias (CLR, TST, LSL, ROL).
func matchesExtra(r *row, word0 uint16) bool {
	if r.k != kindRdRrSame {
		return true
	}
	d := bits(word0, 8, 4)
	rr := bits(word0, 9, 9)<<4 | bits(word0, 3, 0)
	return d == rr
}

func build(r *row, word0, word1 uint16) *Instruction {
	instr := &Instruction{
		Mnemonic:      r.mnemonic,
		Word:          word0,
		ByteSize:      r.size,
		MayChangeFlow: r.flow,
		MaySkipNext:   r.skip,
	}
	switch r.k {
	case kindNone:
		// no operands
	case kindRdRr, kindRdRrSame:
		d := uint8(bits(word0, 8, 4))
		rr := uint8(bits(word0, 9, 9)<<4 | bits(word0, 3, 0))
		instr.Operands.Rd = u8(d)
		instr.Operands.Rr = u8(rr)
	case kindRdK8:
		d := uint8(bits(word0, 7, 4)) + 16
		k := uint8(bits(word0, 11, 8)<<4 | bits(word0, 3, 0))
		instr.Operands.Rd = u8(d)
		instr.Operands.Immediate = i32(int32(k))
	case kindPairK6:
		pair := pairBase(bits(word0, 5, 4))
		k := bits(word0, 7, 6)<<4 | bits(word0, 3, 0)
		instr.Operands.Rd = u8(pair)
		instr.Operands.Immediate = i32(int32(k))
	case kindRd:
		d := uint8(bits(word0, 8, 4))
		instr.Operands.Rd = u8(d)
	case kindIOBit:
		a := uint8(bits(word0, 7, 3))
		b := uint8(bits(word0, 2, 0))
		instr.Operands.IOAddr = u8(a)
		instr.Operands.Bit = u8(b)
	case kindRegBit:
		d := uint8(bits(word0, 8, 4))
		b := uint8(bits(word0, 2, 0))
		instr.Operands.Rd = u8(d)
		instr.Operands.Bit = u8(b)
	case kindSregBit:
		b := uint8(bits(word0, 6, 4))
		instr.Operands.Bit = u8(b)
	case kindBranch:
		k := signExtend(uint32(bits(word0, 9, 3)), 7)
		s := uint8(bits(word0, 2, 0))
		instr.Operands.Bit = u8(s)
		instr.Operands.Immediate = i32(k)
	case kindRelJump:
		k := signExtend(uint32(bits(word0, 11, 0)), 12)
		instr.Operands.Immediate = i32(k)
	case kindAbsJump:
		hi := uint32(bits(word0, 8, 4))<<1 | uint32(bits(word0, 0, 0))
		addr := (hi<<16 | uint32(word1)) * 2
		instr.Operands.TargetAddress = u32(addr)
	case kindIO:
		d := uint8(bits(word0, 8, 4))
		a := uint8(bits(word0, 10, 9)<<4 | bits(word0, 3, 0))
		instr.Operands.Rd = u8(d)
		instr.Operands.IOAddr = u8(a)
	case kindAbsMem:
		d := uint8(bits(word0, 8, 4))
		instr.Operands.Rd = u8(d)
		instr.Operands.TargetAddress = u32(uint32(word1))
	case kindIndirect:
		d := uint8(bits(word0, 8, 4))
		instr.Operands.Rd = u8(d)
	case kindDisp:
		d := uint8(bits(word0, 8, 4))
		q := bits(word0, 13, 13)<<5 | bits(word0, 11, 10)<<3 | bits(word0, 2, 0)
		instr.Operands.Rd = u8(d)
		instr.Operands.Displacement = i8(int8(q))
	case kindMulHi:
		d := uint8(bits(word0, 7, 4)) + 16
		rr := uint8(bits(word0, 3, 0)) + 16
		instr.Operands.Rd = u8(d)
		instr.Operands.Rr = u8(rr)
	case kindMulLo:
		d := uint8(bits(word0, 6, 4)) + 16
		rr := uint8(bits(word0, 2, 0)) + 16
		instr.Operands.Rd = u8(d)
		instr.Operands.Rr = u8(rr)
	case kindDES:
		k := uint8(bits(word0, 7, 4))
		instr.Operands.Immediate = i32(int32(k))
	case kindMovw:
		d := uint8(bits(word0, 7, 4)) * 2
		rr := uint8(bits(word0, 3, 0)) * 2
		instr.Operands.Rd = u8(d)
		instr.Operands.Rr = u8(rr)
	}
	// Absolute/relative flow targets for branch/relative-jump carry an
	// offset, not a byte address; resolving them to an address requires
	// the instruction's own location, which a caller supplies via
	// ResolveTarget.
	return instr
}

// ResolveTarget turns a relative or absolute flow operand into a byte
// address, given the byte address of this instruction. It is a no-op
// for instructions that already carry an absolute TargetAddress (JMP,
// CALL) and for instructions with no flow operand.
func ResolveTarget(instr *Instruction, pc uint32) (target uint32, ok bool) {
	if !instr.MayChangeFlow {
		return 0, false
	}
	switch instr.Mnemonic {
	case "JMP", "CALL":
		if instr.Operands.TargetAddress == nil {
			return 0, false
		}
		return *instr.Operands.TargetAddress, true
	case "RJMP", "RCALL", "BRBS", "BRBC":
		if instr.Operands.Immediate == nil {
			return 0, false
		}
		offset := int64(*instr.Operands.Immediate) * 2
		return uint32(int64(pc) + int64(instr.ByteSize) + offset), true
	default:
		// IJMP/EIJMP/ICALL/EICALL/RET/RETI target the Z register or the
		// stack; neither is knowable from the opcode alone.
		return 0, false
	}
}

// Stream decodes consecutive instructions from buf (little-endian AVR
// program words) starting at byte address start. It stops without error
// at the end of the buffer or at the first word Decode rejects (an
// unrecognized word, or a two-word instruction with no second word
// available), which it records as a final entry with a nil Instr; the
// caller gets back everything decoded so far. Per invariant I5 every
// entry's address is even.
func Stream(buf []byte, start uint32) []StreamEntry {
	var out []StreamEntry
	addr := start
	for i := 0; i+1 < len(buf); {
		word0 := uint16(buf[i]) | uint16(buf[i+1])<<8
		var word1 uint16
		present := i+3 < len(buf)
		if present {
			word1 = uint16(buf[i+2]) | uint16(buf[i+3])<<8
		}
		instr, ok := Decode(word0, word1, present)
		if !ok {
			out = append(out, StreamEntry{Address: addr})
			break
		}
		out = append(out, StreamEntry{Address: addr, Instr: instr})
		i += instr.ByteSize
		addr += uint32(instr.ByteSize)
	}
	return out
}

// StreamEntry pairs a byte address with its decoded instruction, or a
// nil Instr when the word at that address could not be decoded (an
// unrecognized word, or a truncated two-word instruction at the end of
// a buffer).
type StreamEntry struct {
	Address uint32
	Instr   *Instruction
}
