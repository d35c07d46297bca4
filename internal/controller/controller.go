// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package controller serializes every command to the probe behind a
// single worker goroutine, the same pattern golang.org/x/debug's
// program/server package uses for ptrace: a pair of unbuffered channels
// (fc, ec) hand a closure to a dedicated goroutine and wait for its
// error, which guarantees invariant I1 (at most one in-flight probe
// operation) without a mutex around the probe handle itself.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avrdbg/avrdebugd/internal/probe"
	"github.com/avrdbg/avrdebugd/internal/target"
)

// State is the controller's own lifecycle state (distinct from the
// target's run state tracked in Status).
type State int

const (
	Suspended State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "suspended"
}

// RunState is the target's execution state as last observed by the
// controller.
type RunState int

const (
	RunUnknown RunState = iota
	Running
	Stopped
)

// StopCause explains why RunState became Stopped.
type StopCause int

const (
	CauseNone StopCause = iota
	CauseBreak
	CauseHardwareBreakpoint
	CauseSoftwareBreakpoint
	CauseStep
	CauseExternalHalt
)

// Status is the event the controller publishes on a Running->Stopped
// edge, and what QueryState reports.
type Status struct {
	Run     RunState
	Cause   StopCause
	Address uint32 // program counter; meaningful when Run == Stopped
}

var (
	// ErrNotActive is returned by any command issued outside Active.
	ErrNotActive = errors.New("controller: session is not active")
	// ErrAlreadyActive is returned by Activate when already Active.
	ErrAlreadyActive = errors.New("controller: session already active")
	// ErrDegraded is returned fail-fast after a call has timed out,
	// until the next successful Resume.
	ErrDegraded = errors.New("controller: session degraded after a timeout")
	// ErrTimeout is returned by the call that actually timed out.
	ErrTimeout = errors.New("controller: probe call timed out")
)

// DefaultTimeout is the per-call deadline (§4.4).
const DefaultTimeout = 10 * time.Second

// DefaultPollInterval is the cadence the poll loop samples PollState at
// while the target is Running (§5: "at >= 50 ms cadence").
const DefaultPollInterval = 75 * time.Millisecond

// Controller owns the sole mutable handle to a probe.Session and
// enforces the Suspended/Active lifecycle described in spec §4.4.
type Controller struct {
	Timeout      time.Duration
	PollInterval time.Duration

	session probe.Session
	catalog target.Catalog

	fc chan func() error
	ec chan error

	mu         sync.Mutex
	state      State
	degraded   bool
	descriptor *target.Descriptor
	run        RunState
	lastStatus Status
	hwSlots    []bool
	hwAddr     map[int]uint32

	pollStop   chan struct{}
	pollDone   chan struct{}
	events     chan Status
	episodeMu  sync.Mutex
	episodeSig *sync.Once
}

// New constructs a Controller over session, starting Suspended.
func New(session probe.Session) *Controller {
	c := &Controller{
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		session:      session,
		fc:           make(chan func() error),
		ec:           make(chan error),
		events:       make(chan Status, 1),
	}
	go workerLoop(c.fc, c.ec)
	return c
}

// workerLoop is the controller's sole goroutine with a probe handle in
// scope; it is the direct descendant of golang-debug's ptraceRun.
func workerLoop(fc chan func() error, ec chan error) {
	for f := range fc {
		ec <- f()
	}
}

// submit runs fn on the worker goroutine and waits up to c.Timeout for
// it to finish. A timeout marks the session degraded (§7: Timeout).
func (c *Controller) submit(ctx context.Context, fn func() error) error {
	c.mu.Lock()
	degraded := c.degraded
	c.mu.Unlock()
	if degraded {
		return ErrDegraded
	}

	select {
	case c.fc <- fn:
	case <-ctx.Done():
		return ctx.Err()
	}

	timer := time.NewTimer(c.Timeout)
	defer timer.Stop()
	select {
	case err := <-c.ec:
		return err
	case <-timer.C:
		c.mu.Lock()
		c.degraded = true
		c.mu.Unlock()
		return ErrTimeout
	case <-ctx.Done():
		// The worker will still deliver to ec eventually; drain it on a
		// best-effort basis so a later submit doesn't read a stale
		// result. We don't block the caller on this.
		go func() { <-c.ec }()
		return ctx.Err()
	}
}

func (c *Controller) requireActive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Active {
		return ErrNotActive
	}
	return nil
}

// Describe returns the cached TargetDescriptor (invariant I4: it never
// changes within one Active interval).
func (c *Controller) Describe() (*target.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Active {
		return nil, ErrNotActive
	}
	return c.descriptor, nil
}

// QueryState reports the last-known run state without polling the
// probe again; the poll loop (or an explicit Stop/Resume/Step call)
// keeps it current.
func (c *Controller) QueryState() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStatus
}

// CurrentState reports the controller's own lifecycle state.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Degraded reports whether the session is in the post-timeout degraded
// state, surfaced via the "status" monitor command (SPEC_FULL.md §12.2).
func (c *Controller) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

func (c *Controller) setRunState(s Status) {
	c.mu.Lock()
	c.run = s.Run
	c.lastStatus = s
	c.mu.Unlock()
}

// Await blocks until the controller publishes a Running->Stopped edge,
// or ctx is done. It is the channel the engine subscribes to for the
// duration of one Running episode (§9's event-bus replacement).
func (c *Controller) Await(ctx context.Context) (Status, error) {
	select {
	case s := <-c.events:
		return s, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// publishStop delivers s on c.events exactly once per resume episode,
// which is how P4 (stop-reply singleton) holds even when both the poll
// loop and an explicit Halt race to observe the same edge.
func (c *Controller) publishStop(s Status) {
	c.episodeMu.Lock()
	once := c.episodeSig
	c.episodeMu.Unlock()
	if once == nil {
		return
	}
	once.Do(func() {
		c.setRunState(s)
		select {
		case c.events <- s:
		default:
		}
	})
}

// newEpisode arms a fresh once-per-resume guard; called by Activate,
// Resume, Step and Reset.
func (c *Controller) newEpisode() {
	c.episodeMu.Lock()
	c.episodeSig = &sync.Once{}
	c.episodeMu.Unlock()
}

func fmtAddr(a uint32) string { return fmt.Sprintf("%#08x", a) }
