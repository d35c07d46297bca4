// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package controller

import (
	"context"
	"errors"
	"time"

	"github.com/avrdbg/avrdebugd/internal/probe"
	"github.com/avrdbg/avrdebugd/internal/target"
)

// Activate opens the probe, reads the signature, loads the target
// descriptor, and runs any probe-specific enable steps (for DebugWire,
// programming DWEN if needed — see probe.ErrPowerCycleRequired). On
// success the controller enters Active and the poll loop starts.
func (c *Controller) Activate(ctx context.Context) (err error) {
	c.mu.Lock()
	if c.state == Active {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.mu.Unlock()

	var desc *target.Descriptor
	err = c.submit(ctx, func() error {
		d, aerr := c.session.Activate(ctx)
		if aerr != nil {
			return aerr
		}
		desc = d
		return nil
	})
	if errors.Is(err, probe.ErrPowerCycleRequired) {
		return err
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.descriptor = desc
	c.state = Active
	c.degraded = false
	c.run = RunUnknown
	c.hwSlots = make([]bool, desc.HardwareBreakpointSlots)
	c.hwAddr = make(map[int]uint32)
	c.pollStop = make(chan struct{})
	c.pollDone = make(chan struct{})
	c.mu.Unlock()

	c.newEpisode()
	go c.pollLoop(c.pollStop, c.pollDone)
	return nil
}

// Deactivate cleans up the active session: for DebugWire this disables
// DebugWire before any fuse restoration, per SPEC_FULL.md §12.1.
func (c *Controller) Deactivate(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return ErrNotActive
	}
	stop := c.pollStop
	done := c.pollDone
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	err := c.submit(ctx, func() error {
		return c.session.Deactivate(ctx)
	})

	c.mu.Lock()
	c.state = Suspended
	c.descriptor = nil
	c.hwSlots = nil
	c.hwAddr = nil
	c.run = RunUnknown
	c.mu.Unlock()
	return err
}

// pollLoop samples PollState at PollInterval while Running, publishing
// exactly one Status on the Running->Stopped edge (§5: "a timer source
// owned by the controller that posts poll_state work items at >= 50 ms
// cadence while the target is Running").
func (c *Controller) pollLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			running := c.run == Running
			c.mu.Unlock()
			if !running {
				continue
			}
			var st probe.State
			err := c.submit(context.Background(), func() error {
				s, perr := c.session.PollState(context.Background())
				st = s
				return perr
			})
			if err != nil {
				continue
			}
			if st == probe.StateStopped {
				addr, _ := c.readPCLocked(context.Background())
				c.publishStop(Status{Run: Stopped, Cause: CauseBreak, Address: addr})
			}
		}
	}
}

func (c *Controller) readPCLocked(ctx context.Context) (uint32, error) {
	var pc uint32
	err := c.submit(ctx, func() error {
		p, perr := c.session.ReadPC(ctx)
		pc = p
		return perr
	})
	return pc, err
}
