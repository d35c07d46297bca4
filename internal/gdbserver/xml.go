// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gdbserver

import (
	"fmt"
	"strings"

	"github.com/avrdbg/avrdebugd/internal/command"
)

// targetXML synthesizes the document avr-gdb requests via
// qXfer:features:read:target.xml, describing r0-r31, SREG, SP, and PC
// — the same register set the 'g'/'G' encoding in registers.go uses,
// in the layout §6 specifies. The document is deterministic per
// target, per §6.
func targetXML() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>`)
	b.WriteString(`<!DOCTYPE target SYSTEM "gdb-target.dtd">`)
	b.WriteString(`<target version="1.0">`)
	b.WriteString(`<architecture>avr</architecture>`)
	b.WriteString(`<feature name="org.gnu.gdb.avr.cpu">`)
	for i := 0; i < 32; i++ {
		fmt.Fprintf(&b, `<reg name="r%d" bitsize="8" regnum="%d"/>`, i, i)
	}
	b.WriteString(`<reg name="sreg" bitsize="8" regnum="32" type="int"/>`)
	b.WriteString(`<reg name="sp" bitsize="16" regnum="33" type="data_ptr"/>`)
	b.WriteString(`<reg name="pc" bitsize="32" regnum="34" type="code_ptr"/>`)
	b.WriteString(`</feature>`)
	b.WriteString(`</target>`)
	return b.String()
}

// handleQXferFeatures serves target.xml in the chunked m/l framing
// qXfer uses, grounded on the identical offset/length slicing in
// Orizon's handleQXferFeatures and aykevl/emculator's static
// gdbAnnexTarget — generalized here to avr's actual register file
// instead of a fixed ARM or pseudo-VM layout.
func (e *Engine) handleQXferFeatures(cmd command.Command) []byte {
	data := []byte(targetXML())
	off := cmd.XferOffset
	if off >= uint32(len(data)) {
		return []byte("l")
	}
	end := off + cmd.XferLength
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	marker := byte('m')
	if end == uint32(len(data)) {
		marker = 'l'
	}
	return append([]byte{marker}, data[off:end]...)
}
