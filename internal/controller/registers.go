// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package controller

// Registers is the flat register file the gdbserver engine's g/G
// packets marshal, in the order avr-gdb's target description expects:
// 32 general-purpose registers, SREG, the stack pointer, and the
// program counter.
type Registers struct {
	GP    [32]byte
	SREG  byte
	SP    uint16
	PC    uint32
}
