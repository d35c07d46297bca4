// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gdbserver

import (
	"context"

	"github.com/avrdbg/avrdebugd/internal/controller"
	"github.com/avrdbg/avrdebugd/internal/rsp"
)

// runEpisode transitions the engine to Running, resumes or steps the
// target, and blocks until exactly one stop-reply is ready — either
// because the target halted on its own (breakpoint, natural stop) or
// because the client sent the raw 0x03 interrupt while Running. Per
// §4.3 a 0x03 received here still produces exactly one stop-reply.
func (e *Engine) runEpisode(ctx context.Context, from *uint32, step bool, packets <-chan packetResult) []byte {
	e.mu.Lock()
	e.phase = phaseRunning
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.phase = phaseIdle
		e.mu.Unlock()
	}()

	var st controller.Status
	var err error
	if step {
		st, err = e.softStep(ctx, from)
	} else {
		err = e.ctrl.Resume(ctx, from)
		if err == nil {
			st, err = e.awaitHalt(ctx, packets)
		}
	}
	if err != nil {
		if err == controller.ErrTimeout {
			return []byte("E04")
		}
		return e.classify(err, "E03")
	}

	st = e.classifyStop(st)
	e.recordStop(st)
	return []byte(formatStopReply(st))
}

// awaitHalt waits for either the controller's stop event or a raw 0x03
// interrupt arriving on the packet channel, whichever comes first.
func (e *Engine) awaitHalt(ctx context.Context, packets <-chan packetResult) (controller.Status, error) {
	stopCh := make(chan controller.Status, 1)
	errCh := make(chan error, 1)
	go func() {
		s, err := e.ctrl.Await(ctx)
		if err != nil {
			errCh <- err
			return
		}
		stopCh <- s
	}()

	for {
		select {
		case s := <-stopCh:
			return s, nil
		case err := <-errCh:
			return controller.Status{}, err
		case pr := <-packets:
			if pr.err == rsp.ErrInterrupt {
				if herr := e.ctrl.Stop(ctx); herr != nil {
					return controller.Status{}, herr
				}
				// The controller's own publishStop for this episode
				// will deliver on stopCh next iteration.
				continue
			}
			// Any other inbound byte while Running is unexpected
			// (the client is expected to wait for the stop-reply); drop it.
		case <-ctx.Done():
			return controller.Status{}, ctx.Err()
		}
	}
}

// classifyStop annotates a generic controller.Status with the
// breakpoint kind recorded in the engine's own registry, since the
// controller only knows hardware slot numbers, not what they mean.
func (e *Engine) classifyStop(st controller.Status) controller.Status {
	if st.Cause != controller.CauseBreak {
		return st
	}
	e.mu.Lock()
	_, isHW := e.hw[st.Address]
	_, isSW := e.sw[st.Address]
	e.mu.Unlock()
	switch {
	case isSW:
		st.Cause = controller.CauseSoftwareBreakpoint
	case isHW:
		st.Cause = controller.CauseHardwareBreakpoint
	}
	return st
}
