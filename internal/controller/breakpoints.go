// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package controller

import (
	"context"
	"errors"
)

// ErrNoFreeSlot is returned by SetBreakpoint when every hardware
// breakpoint slot the target descriptor advertises is already in use.
// The engine falls back to a software overlay breakpoint in this case
// (§5: "the breakpoint registry ... owned by the engine, never touched
// by the controller directly; the controller only knows about hardware
// slot numbers").
var ErrNoFreeSlot = errors.New("controller: no free hardware breakpoint slot")

// ErrNoSuchSlot is returned by ClearBreakpoint for a slot index that is
// not currently armed.
var ErrNoSuchSlot = errors.New("controller: no breakpoint in that slot")

// SetBreakpoint arms a hardware breakpoint at addr in the first free
// slot and returns the slot index. It never manages software overlay
// breakpoints; those are Flash bytes the engine rewrites itself via
// ReadMemory/WriteMemory.
func (c *Controller) SetBreakpoint(ctx context.Context, addr uint32) (int, error) {
	if err := c.requireActive(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	slot := -1
	for i, used := range c.hwSlots {
		if !used {
			slot = i
			break
		}
	}
	c.mu.Unlock()
	if slot == -1 {
		return 0, ErrNoFreeSlot
	}

	if err := c.submit(ctx, func() error {
		return c.session.SetHWBreakpoint(ctx, slot, addr)
	}); err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.hwSlots[slot] = true
	c.hwAddr[slot] = addr
	c.mu.Unlock()
	return slot, nil
}

// ClearBreakpoint disarms the hardware breakpoint previously returned
// by SetBreakpoint.
func (c *Controller) ClearBreakpoint(ctx context.Context, slot int) error {
	if err := c.requireActive(); err != nil {
		return err
	}

	c.mu.Lock()
	if slot < 0 || slot >= len(c.hwSlots) || !c.hwSlots[slot] {
		c.mu.Unlock()
		return ErrNoSuchSlot
	}
	c.mu.Unlock()

	if err := c.submit(ctx, func() error {
		return c.session.ClearHWBreakpoint(ctx, slot)
	}); err != nil {
		return err
	}

	c.mu.Lock()
	c.hwSlots[slot] = false
	delete(c.hwAddr, slot)
	c.mu.Unlock()
	return nil
}

// CanUseHardwareBreakpoint reports whether a hardware slot is free,
// which the engine consults before deciding between a hardware
// breakpoint and a software overlay.
func (c *Controller) CanUseHardwareBreakpoint() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, used := range c.hwSlots {
		if !used {
			return true
		}
	}
	return false
}

// HardwareBreakpointAt reports the slot index armed at addr, if any.
func (c *Controller) HardwareBreakpointAt(addr uint32) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for slot, a := range c.hwAddr {
		if a == addr {
			return slot, true
		}
	}
	return 0, false
}
