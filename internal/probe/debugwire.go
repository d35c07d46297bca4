// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package probe

import (
	"context"
	"errors"

	"github.com/avrdbg/avrdebugd/internal/target"
)

// ErrPowerCycleRequired is returned by Activate for a DebugWire session
// when the DWEN fuse had to be programmed. DebugWire only takes effect
// after a power cycle, which the controller cannot perform itself. It is
// a distinct error rather than a ConfigError, since the session can
// simply be retried once the user has cycled power. Controller.Activate
// returns it to its caller unchanged; no monitor command reports it.
var ErrPowerCycleRequired = errors.New("DWEN fuse programmed; power-cycle the target and reconnect")

func (s *session) familyActivate(ctx context.Context, desc *target.Descriptor) error {
	switch s.family {
	case DebugWire:
		return s.debugWireActivate(ctx)
	default:
		return nil
	}
}

func (s *session) familyDeactivate(ctx context.Context) error {
	switch s.family {
	case DebugWire:
		return s.debugWireDeactivate(ctx)
	default:
		return nil
	}
}

// debugWireActivate is the last step of Activate, run after sign-on,
// the signature read and the descriptor lookup. It reads the DWEN fuse
// and programs it if it is not yet set. Programming the fuse only takes
// effect after a power cycle, so if this step had to write the fuse,
// Activate fails with ErrPowerCycleRequired instead of returning a
// descriptor, and the controller does not enter Active.
func (s *session) debugWireActivate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultExchangeTimeout)
	defer cancel()
	reply, err := s.exchange(ctx, "read-fuse", []byte{cmdReadFuse, fuseDWEN})
	if err != nil {
		return err
	}
	if len(reply) < 1 {
		return wrap("read-fuse", Protocol, nil)
	}
	if reply[0] != 0 {
		// DWEN already set; nothing to do.
		return nil
	}
	if _, err := s.exchange(ctx, "program-fuse", []byte{cmdProgramFuse, fuseDWEN, 1}); err != nil {
		return err
	}
	return ErrPowerCycleRequired
}

// debugWireDeactivate runs before the generic deactivate command so
// that DebugWire is disabled before any fuse restoration is attempted —
// disabling DebugWire is what hands the ISP interface back, and fuse
// programming needs ISP.
func (s *session) debugWireDeactivate(ctx context.Context) error {
	_, err := s.exchange(ctx, "program-fuse", []byte{cmdProgramFuse, fuseDWEN, 0})
	return err
}

const fuseDWEN byte = 0
