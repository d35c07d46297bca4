// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package target holds the read-only, per-part facts the rest of this
// server treats as data rather than code: memory-space bounds, register
// offsets, and breakpoint budget for one AVR part, plus the flat-address
// mapping the GDB remote-serial protocol needs and neither AVR nor the
// protocol itself provides.
//
// This plays the same role golang.org/x/debug's arch.Architecture plays
// for a host process architecture (a small constant record selected
// once and never mutated), generalized from "one of three compiled-in
// values" to "one of N values loaded from an on-disk catalog," since the
// AVR part catalog is too large to usefully compile in and spec.md §1
// names it explicitly as an external, thin data-loading layer.
package target

import "fmt"

// Space identifies one of AVR's disjoint memory spaces. The GDB remote
// protocol assumes a single flat address space; Descriptor.Decode maps
// an incoming flat address into one of these plus an offset within it.
type Space int

const (
	Flash Space = iota
	Ram
	Eeprom
	Io
	Registers
	Fuses
	Lockbits
	Signatures
)

func (s Space) String() string {
	switch s {
	case Flash:
		return "flash"
	case Ram:
		return "ram"
	case Eeprom:
		return "eeprom"
	case Io:
		return "io"
	case Registers:
		return "registers"
	case Fuses:
		return "fuses"
	case Lockbits:
		return "lockbits"
	case Signatures:
		return "signatures"
	default:
		return "unknown"
	}
}

// Default flat-address offsets for the GNU AVR toolchain's address
// layout (spec.md §3): flash occupies the low addresses unmapped,
// RAM is offset by 0x800000, EEPROM by 0x810000. Every catalog entry
// uses these; they are not configurable per part because no AVR
// toolchain varies them.
const (
	DefaultRamOffset    uint32 = 0x800000
	DefaultEepromOffset uint32 = 0x810000
)

// Descriptor is the cached, read-only set of facts about one AVR part,
// built once per Suspended->Active transition (invariant I4) and never
// mutated for the lifetime of that Active episode.
type Descriptor struct {
	Name      string
	Signature [3]byte

	FlashSize     uint32
	FlashPageSize uint32

	RamOffset uint32
	RamSize   uint32

	EepromOffset uint32
	EepromSize   uint32

	// SREGOffset and SPOffset are offsets within the Io space, per
	// spec.md §3's "status register and stack pointer offsets."
	SREGOffset uint32
	SPOffset   uint32

	// PCWidth is the program counter's width in bytes, as recorded in
	// the catalog. The register encoding and target.xml always use a
	// 32-bit PC slot and do not read this field.
	PCWidth uint32

	HardwareBreakpointSlots int
}

// AddressDecodeError reports a flat address that does not fall within
// any space this descriptor declares (spec.md §7, surfaced as E01).
type AddressDecodeError struct {
	Address uint32
	Length  uint32
}

func (e *AddressDecodeError) Error() string {
	return fmt.Sprintf("address 0x%x (len %d) does not map to a known memory space", e.Address, e.Length)
}

// Decode splits a flat GDB address into (space, offset), rejecting any
// request that would cross a space boundary (scenario 2: a read
// spanning flash and RAM is an error, not two reads). Property P7:
// encode(space, offset) (the inverse, computed by callers that already
// know the space) round-trips through Decode for every in-bounds pair.
func (d *Descriptor) Decode(addr, length uint32) (Space, uint32, error) {
	end := addr + length

	if addr >= d.RamOffset && addr < d.EepromOffset {
		off := addr - d.RamOffset
		if end > d.RamOffset+d.RamSize {
			return 0, 0, &AddressDecodeError{addr, length}
		}
		return Ram, off, nil
	}
	if addr >= d.EepromOffset {
		off := addr - d.EepromOffset
		if end > d.EepromOffset+d.EepromSize {
			return 0, 0, &AddressDecodeError{addr, length}
		}
		return Eeprom, off, nil
	}
	// Flash: addr < RamOffset.
	if end > d.FlashSize || end > d.RamOffset {
		return 0, 0, &AddressDecodeError{addr, length}
	}
	return Flash, addr, nil
}

// FlashPageBase rounds a flash offset down to its containing page.
func (d *Descriptor) FlashPageBase(offset uint32) uint32 {
	if d.FlashPageSize == 0 {
		return offset
	}
	return offset - offset%d.FlashPageSize
}
