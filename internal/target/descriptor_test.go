// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

import "testing"

func testATmega328P() *Descriptor {
	return &Descriptor{
		Name:          "ATmega328P",
		Signature:     [3]byte{0x1E, 0x95, 0x0F},
		FlashSize:     0x8000,
		FlashPageSize: 128,
		RamOffset:     DefaultRamOffset,
		RamSize:       0x800,
		EepromOffset:  DefaultEepromOffset,
		EepromSize:    0x400,
		SREGOffset:    0x3F,
		SPOffset:      0x3D,
		PCWidth:       4,
	}
}

func TestDecodeFlashBelowBoundary(t *testing.T) {
	d := testATmega328P()
	space, off, err := d.Decode(0x7FFE, 2)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if space != Flash || off != 0x7FFE {
		t.Fatalf("got (%v, 0x%x), want (Flash, 0x7FFE)", space, off)
	}
}

func TestDecodeRamOffset(t *testing.T) {
	// spec.md §8 scenario 2: m 800060,8 reads RAM offset 0x60.
	d := testATmega328P()
	space, off, err := d.Decode(DefaultRamOffset+0x60, 8)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if space != Ram || off != 0x60 {
		t.Fatalf("got (%v, 0x%x), want (Ram, 0x60)", space, off)
	}
}

func TestDecodeCrossingFlashRamBoundaryFails(t *testing.T) {
	// spec.md §8 scenario 2: m 7FFE,8 crosses the flash/RAM boundary.
	d := testATmega328P()
	if _, _, err := d.Decode(0x7FFE, 8); err == nil {
		t.Fatal("expected an AddressDecodeError")
	}
}

func TestDecodeEeprom(t *testing.T) {
	d := testATmega328P()
	space, off, err := d.Decode(DefaultEepromOffset+0x10, 4)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if space != Eeprom || off != 0x10 {
		t.Fatalf("got (%v, 0x%x), want (Eeprom, 0x10)", space, off)
	}
}

func TestFlashPageBase(t *testing.T) {
	d := testATmega328P()
	if got := d.FlashPageBase(0x205); got != 0x200 {
		t.Fatalf("FlashPageBase(0x205) = 0x%x, want 0x200", got)
	}
}
