// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gdbserver

import (
	"context"

	"github.com/avrdbg/avrdebugd/internal/controller"
	"github.com/avrdbg/avrdebugd/internal/opcode"
	"github.com/avrdbg/avrdebugd/internal/target"
)

// softStep implements §4.3's single-step correctness rule: skip
// instructions (CPSE/SBRC/SBRS/SBIC/SBIS) cannot be single-stepped
// correctly by the probe's native step, because the probe cannot know
// in advance whether the skip will be taken. The engine decodes the
// instruction at PC, and if it may skip, plants temporary hardware
// breakpoints at both possible landing addresses, resumes, and reports
// whichever one the target actually stopped at (scenario 4).
//
// Instructions that may change flow (branches, calls, returns) are
// handed to the probe's own native step, which follows the branch
// itself, and so does every other instruction that is not a skip
// instruction; only skip instructions are software-stepped here.
func (e *Engine) softStep(ctx context.Context, from *uint32) (controller.Status, error) {
	if from != nil {
		if err := e.ctrl.SetProgramCounter(ctx, *from); err != nil {
			return controller.Status{}, err
		}
	}

	pc, err := e.currentPC(ctx)
	if err != nil {
		return controller.Status{}, err
	}

	var word1 uint16
	var have1 bool
	buf, err := e.ctrl.ReadMemory(ctx, target.Flash, pc, 4)
	if err != nil {
		return controller.Status{}, err
	}
	w0 := uint16(buf[0]) | uint16(buf[1])<<8
	if len(buf) >= 4 {
		word1 = uint16(buf[2]) | uint16(buf[3])<<8
		have1 = true
	}
	instr, ok := opcode.Decode(w0, word1, have1)

	if !ok || !instr.MaySkipNext {
		return e.stepNative(ctx)
	}

	fallthroughAddr := pc + uint32(instr.ByteSize)
	nextBuf, err := e.ctrl.ReadMemory(ctx, target.Flash, fallthroughAddr, 4)
	if err != nil {
		return controller.Status{}, err
	}
	nw0 := uint16(nextBuf[0]) | uint16(nextBuf[1])<<8
	var nw1 uint16
	nHave1 := len(nextBuf) >= 4
	if nHave1 {
		nw1 = uint16(nextBuf[2]) | uint16(nextBuf[3])<<8
	}
	nextInstr, nOK := opcode.Decode(nw0, nw1, nHave1)
	nextSize := uint32(2)
	if nOK {
		nextSize = uint32(nextInstr.ByteSize)
	}
	skipLanding := fallthroughAddr + nextSize

	slot1, err := e.ctrl.SetBreakpoint(ctx, fallthroughAddr)
	if err != nil {
		return controller.Status{}, err
	}
	slot2, err := e.ctrl.SetBreakpoint(ctx, skipLanding)
	if err != nil {
		e.ctrl.ClearBreakpoint(ctx, slot1)
		return controller.Status{}, err
	}
	defer func() {
		e.ctrl.ClearBreakpoint(ctx, slot1)
		e.ctrl.ClearBreakpoint(ctx, slot2)
	}()

	if err := e.ctrl.Resume(ctx, nil); err != nil {
		return controller.Status{}, err
	}
	st, err := e.ctrl.Await(ctx)
	if err != nil {
		return controller.Status{}, err
	}
	st.Cause = controller.CauseStep
	return st, nil
}

func (e *Engine) stepNative(ctx context.Context) (controller.Status, error) {
	return e.ctrl.Step(ctx, nil)
}

func (e *Engine) currentPC(ctx context.Context) (uint32, error) {
	regs, err := e.ctrl.ReadRegisters(ctx)
	if err != nil {
		return 0, err
	}
	return regs.PC, nil
}
