// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package opcode

// kind selects which operand-extraction rule a table row uses. This
// mirrors golang.org/x/debug's arch.Architecture approach of keeping
// per-architecture behavior as data (ByteOrder, BreakpointInstr, ...)
// rather than code; here one "architecture" (AVR8) has many instruction
// shapes, so the per-row variation is the extraction rule instead of the
// architecture itself.
type kind int

const (
	kindNone       kind = iota // no operands (NOP, RET, RETI, SLEEP, WDR, BREAK, IJMP, ICALL, EIJMP, EICALL, implicit LPM/ELPM/SPM)
	kindRdRr                   // general two-register ALU op
	kindRdRrSame                // two-register ALU op, only valid when Rd == Rr (CLR/TST/LSL/ROL aliases)
	kindRdK8                   // Rd in r16-31, 8-bit immediate (ANDI, ORI, CPI, SUBI, SBCI, LDI)
	kindPairK6                  // register pair + 6-bit immediate (ADIW, SBIW)
	kindRd                      // single register operand (COM, NEG, SWAP, INC, ASR, LSR, ROR, DEC, PUSH, POP, XCH, LAS, LAC, LAT)
	kindIOBit                   // 5-bit I/O address + 3-bit bit index (SBI, CBI, SBIC, SBIS)
	kindRegBit                  // register + bit index (SBRC, SBRS, BLD, BST)
	kindSregBit                 // 3-bit status-register flag index (BSET, BCLR)
	kindBranch                  // 7-bit signed PC-relative word offset + flag index (BRBS, BRBC)
	kindRelJump                 // 12-bit signed PC-relative word offset (RJMP, RCALL)
	kindAbsJump                 // 22-bit absolute word address, second word (JMP, CALL)
	kindIO                      // register + 6-bit I/O address (IN, OUT)
	kindAbsMem                  // register + 16-bit absolute data address, second word (LDS, STS)
	kindIndirect                // register + implicit pointer register, no displacement (LD/ST via X, X+, -X, Y, Y+, -Y, Z, Z+, -Z)
	kindDisp                    // register + 6-bit displacement (LDD/STD via Y+q, Z+q)
	kindMulHi                   // two 4-bit register fields biased by 16 (MULS)
	kindMulLo                   // two 3-bit register fields biased by 16 (MULSU, FMUL, FMULS, FMULSU)
	kindDES                     // 4-bit immediate (DES)
	kindMovw                    // register-pair copy, both fields biased x2 (MOVW)
)

type row struct {
	mnemonic string
	mask     uint16
	pattern  uint16
	size     int
	flow     bool
	skip     bool
	k        kind
}

// table is walked in order; the first matching row wins. Order encodes
// the same specific-before-general rule the opcode decoder's source
// relies on for the CLR/EOR, TST/AND and LSL/ADD, ROL/ADC pairs: the
// "Same" alias rows are listed before their general two-register
// counterparts.
var table = []row{
	// Register-pair copy. 0x01xx doesn't overlap the general two-register
	// rows below (under their 0xFC00 mask a MOVW word reduces to 0x0000,
	// which none of their patterns is), so it needs no special ordering
	// against them.
	{"MOVW", 0xFF00, 0x0100, 2, false, false, kindMovw},

	// Two-register ALU: aliases before their general form.
	{"CLR", 0xFC00, 0x2400, 2, false, false, kindRdRrSame}, // EOR Rd,Rd
	{"EOR", 0xFC00, 0x2400, 2, false, false, kindRdRr},
	{"TST", 0xFC00, 0x2000, 2, false, false, kindRdRrSame}, // AND Rd,Rd
	{"AND", 0xFC00, 0x2000, 2, false, false, kindRdRr},
	{"LSL", 0xFC00, 0x0C00, 2, false, false, kindRdRrSame}, // ADD Rd,Rd
	{"ADD", 0xFC00, 0x0C00, 2, false, false, kindRdRr},
	{"ROL", 0xFC00, 0x1C00, 2, false, false, kindRdRrSame}, // ADC Rd,Rd
	{"ADC", 0xFC00, 0x1C00, 2, false, false, kindRdRr},
	{"SUB", 0xFC00, 0x1800, 2, false, false, kindRdRr},
	{"SBC", 0xFC00, 0x0800, 2, false, false, kindRdRr},
	{"CP", 0xFC00, 0x1400, 2, false, false, kindRdRr},
	{"CPC", 0xFC00, 0x0400, 2, false, false, kindRdRr},
	{"CPSE", 0xFC00, 0x1000, 2, false, true, kindRdRr},
	{"MOV", 0xFC00, 0x2C00, 2, false, false, kindRdRr},
	{"OR", 0xFC00, 0x2800, 2, false, false, kindRdRr},
	{"MUL", 0xFC00, 0x9C00, 2, false, false, kindRdRr},

	// Immediate ALU, Rd restricted to r16-r31.
	{"SUBI", 0xF000, 0x5000, 2, false, false, kindRdK8},
	{"SBCI", 0xF000, 0x4000, 2, false, false, kindRdK8},
	{"CPI", 0xF000, 0x3000, 2, false, false, kindRdK8},
	{"ANDI", 0xF000, 0x7000, 2, false, false, kindRdK8},
	{"ORI", 0xF000, 0x6000, 2, false, false, kindRdK8},
	{"LDI", 0xF000, 0xE000, 2, false, false, kindRdK8},

	// Wide immediate ALU on register pairs.
	{"ADIW", 0xFF00, 0x9600, 2, false, false, kindPairK6},
	{"SBIW", 0xFF00, 0x9700, 2, false, false, kindPairK6},

	// Single-register ALU.
	{"COM", 0xFE0F, 0x9400, 2, false, false, kindRd},
	{"NEG", 0xFE0F, 0x9401, 2, false, false, kindRd},
	{"SWAP", 0xFE0F, 0x9402, 2, false, false, kindRd},
	{"INC", 0xFE0F, 0x9403, 2, false, false, kindRd},
	{"ASR", 0xFE0F, 0x9405, 2, false, false, kindRd},
	{"LSR", 0xFE0F, 0x9406, 2, false, false, kindRd},
	{"ROR", 0xFE0F, 0x9407, 2, false, false, kindRd},
	{"DEC", 0xFE0F, 0x940A, 2, false, false, kindRd},
	{"PUSH", 0xFE0F, 0x920F, 2, false, false, kindRd},
	{"POP", 0xFE0F, 0x900F, 2, false, false, kindRd},
	{"XCH", 0xFE0F, 0x9204, 2, false, false, kindRd},
	{"LAS", 0xFE0F, 0x9205, 2, false, false, kindRd},
	{"LAC", 0xFE0F, 0x9206, 2, false, false, kindRd},
	{"LAT", 0xFE0F, 0x9207, 2, false, false, kindRd},

	// Multiply variants restricted to r16-r23/r16-r31.
	{"MULS", 0xFF00, 0x0200, 2, false, false, kindMulHi},
	{"MULSU", 0xFF88, 0x0300, 2, false, false, kindMulLo},
	{"FMUL", 0xFF88, 0x0308, 2, false, false, kindMulLo},
	{"FMULS", 0xFF88, 0x0380, 2, false, false, kindMulLo},
	{"FMULSU", 0xFF88, 0x0388, 2, false, false, kindMulLo},

	// Status register bit set/clear (BSET/BCLR and all SEx/CLx aliases).
	{"BSET", 0xFF8F, 0x9408, 2, false, false, kindSregBit},
	{"BCLR", 0xFF8F, 0x9488, 2, false, false, kindSregBit},

	// Register bit test/skip.
	{"BLD", 0xFE08, 0xF800, 2, false, false, kindRegBit},
	{"BST", 0xFE08, 0xFA00, 2, false, false, kindRegBit},
	{"SBRC", 0xFE08, 0xFC00, 2, false, true, kindRegBit},
	{"SBRS", 0xFE08, 0xFE00, 2, false, true, kindRegBit},

	// I/O bit test/skip/set/clear.
	{"CBI", 0xFF00, 0x9800, 2, false, false, kindIOBit},
	{"SBIC", 0xFF00, 0x9900, 2, false, true, kindIOBit},
	{"SBI", 0xFF00, 0x9A00, 2, false, false, kindIOBit},
	{"SBIS", 0xFF00, 0x9B00, 2, false, true, kindIOBit},

	// I/O register transfer.
	{"IN", 0xF800, 0xB000, 2, false, false, kindIO},
	{"OUT", 0xF800, 0xB800, 2, false, false, kindIO},

	// Conditional relative branch.
	{"BRBS", 0xFC00, 0xF000, 2, true, false, kindBranch},
	{"BRBC", 0xFC00, 0xF400, 2, true, false, kindBranch},

	// Unconditional relative jump/call.
	{"RJMP", 0xF000, 0xC000, 2, true, false, kindRelJump},
	{"RCALL", 0xF000, 0xD000, 2, true, false, kindRelJump},

	// Absolute jump/call, two words.
	{"JMP", 0xFE0E, 0x940C, 4, true, false, kindAbsJump},
	{"CALL", 0xFE0E, 0x940E, 4, true, false, kindAbsJump},

	// Indirect jump/call through Z.
	{"IJMP", 0xFFFF, 0x9409, 2, true, false, kindNone},
	{"EIJMP", 0xFFFF, 0x9419, 2, true, false, kindNone},
	{"ICALL", 0xFFFF, 0x9509, 2, true, false, kindNone},
	{"EICALL", 0xFFFF, 0x9519, 2, true, false, kindNone},

	// Return.
	{"RET", 0xFFFF, 0x9508, 2, true, false, kindNone},
	{"RETI", 0xFFFF, 0x9518, 2, true, false, kindNone},

	// Program/data memory, absolute, two words.
	{"LDS", 0xFE0F, 0x9000, 4, false, false, kindAbsMem},
	{"STS", 0xFE0F, 0x9200, 4, false, false, kindAbsMem},

	// Displacement load/store (Y+q, Z+q).
	{"LDD", 0xD200, 0x8000, 2, false, false, kindDisp},
	{"STD", 0xD200, 0x8200, 2, false, false, kindDisp},

	// Pointer-register load/store, no displacement.
	{"LD", 0xFE0F, 0x8000, 2, false, false, kindIndirect}, // Z
	{"LD", 0xFE0F, 0x9001, 2, false, false, kindIndirect}, // Z+
	{"LD", 0xFE0F, 0x9002, 2, false, false, kindIndirect}, // -Z
	{"LD", 0xFE0F, 0x8008, 2, false, false, kindIndirect}, // Y
	{"LD", 0xFE0F, 0x9009, 2, false, false, kindIndirect}, // Y+
	{"LD", 0xFE0F, 0x900A, 2, false, false, kindIndirect}, // -Y
	{"LD", 0xFE0F, 0x900C, 2, false, false, kindIndirect}, // X
	{"LD", 0xFE0F, 0x900D, 2, false, false, kindIndirect}, // X+
	{"LD", 0xFE0F, 0x900E, 2, false, false, kindIndirect}, // -X
	{"ST", 0xFE0F, 0x8200, 2, false, false, kindIndirect}, // Z
	{"ST", 0xFE0F, 0x9201, 2, false, false, kindIndirect}, // Z+
	{"ST", 0xFE0F, 0x9202, 2, false, false, kindIndirect}, // -Z
	{"ST", 0xFE0F, 0x8208, 2, false, false, kindIndirect}, // Y
	{"ST", 0xFE0F, 0x9209, 2, false, false, kindIndirect}, // Y+
	{"ST", 0xFE0F, 0x920A, 2, false, false, kindIndirect}, // -Y
	{"ST", 0xFE0F, 0x920C, 2, false, false, kindIndirect}, // X
	{"ST", 0xFE0F, 0x920D, 2, false, false, kindIndirect}, // X+
	{"ST", 0xFE0F, 0x920E, 2, false, false, kindIndirect}, // -X

	// Program memory read/write.
	{"LPM", 0xFFFF, 0x95C8, 2, false, false, kindNone},
	{"LPM", 0xFE0F, 0x9004, 2, false, false, kindRd},
	{"LPM", 0xFE0F, 0x9005, 2, false, false, kindRd},
	{"ELPM", 0xFFFF, 0x95D8, 2, false, false, kindNone},
	{"ELPM", 0xFE0F, 0x9006, 2, false, false, kindRd},
	{"ELPM", 0xFE0F, 0x9007, 2, false, false, kindRd},
	{"SPM", 0xFFFF, 0x95E8, 2, false, false, kindNone},
	{"SPM", 0xFFFF, 0x95F8, 2, false, false, kindNone},

	// Data encryption standard step (XMEGA).
	{"DES", 0xFF0F, 0x940B, 2, false, false, kindDES},

	// MCU control.
	{"BREAK", 0xFFFF, 0x9598, 2, false, false, kindNone},
	{"SLEEP", 0xFFFF, 0x9588, 2, false, false, kindNone},
	{"WDR", 0xFFFF, 0x95A8, 2, false, false, kindNone},
	{"NOP", 0xFFFF, 0x0000, 2, false, false, kindNone},
}
