// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import "testing"

func TestParseReadMemoryCrossBoundaryScenario(t *testing.T) {
	c := Parse([]byte("m7FFE,4"))
	if c.Kind != ReadMemory || c.Address != 0x7FFE || c.Length != 4 {
		t.Fatalf("unexpected parse: %+v", c)
	}
}

func TestParseWriteMemory(t *testing.T) {
	c := Parse([]byte("M1000,2:abcd"))
	if c.Kind != WriteMemory || c.Address != 0x1000 || c.Length != 2 {
		t.Fatalf("unexpected parse: %+v", c)
	}
	if string(c.Data) != "\xab\xcd" {
		t.Fatalf("unexpected data: %x", c.Data)
	}
}

func TestParseBreakpointScenario(t *testing.T) {
	c := Parse([]byte("Z0,200,2"))
	if c.Kind != InsertBreakpoint || c.BreakpointKind != BreakpointSoftware || c.BreakpointAddr != 0x200 {
		t.Fatalf("unexpected parse: %+v", c)
	}
	rm := Parse([]byte("z0,200,2"))
	if rm.Kind != RemoveBreakpoint || rm.BreakpointAddr != 0x200 {
		t.Fatalf("unexpected parse: %+v", rm)
	}
}

func TestParseContinueWithoutAddress(t *testing.T) {
	c := Parse([]byte("c"))
	if c.Kind != Continue || c.ResumeAddress != nil {
		t.Fatalf("unexpected parse: %+v", c)
	}
}

func TestParseStepWithAddress(t *testing.T) {
	c := Parse([]byte("s42"))
	if c.Kind != Step || c.ResumeAddress == nil || *c.ResumeAddress != 0x42 {
		t.Fatalf("unexpected parse: %+v", c)
	}
}

func TestParseVCont(t *testing.T) {
	c := Parse([]byte("vCont;c"))
	if c.Kind != VCont || len(c.VContActions) != 1 || c.VContActions[0].Action != 'c' {
		t.Fatalf("unexpected parse: %+v", c)
	}
}

func TestParseQRcmd(t *testing.T) {
	c := Parse([]byte("qRcmd,72656c6f6164"))
	if c.Kind != QRcmd || c.MonitorHex != "72656c6f6164" {
		t.Fatalf("unexpected parse: %+v", c)
	}
}

func TestParseUnrecognized(t *testing.T) {
	c := Parse([]byte("vFileOpen"))
	if c.Kind != Unrecognized {
		t.Fatalf("expected Unrecognized, got %+v", c)
	}
}

func TestParseXBinary(t *testing.T) {
	// X addr,len:bytes with one escaped byte ('}' then 0x5d, real value 0x5d^0x20 = 0x7d).
	c := Parse([]byte("X10,2:\x7d\x5dz"))
	if c.Kind != WriteMemoryBinary || c.Address != 0x10 || c.Length != 2 {
		t.Fatalf("unexpected parse: %+v", c)
	}
	if c.Data[0] != 0x5d^0x20 || c.Data[1] != 'z' {
		t.Fatalf("unexpected unescape: %x", c.Data)
	}
}
