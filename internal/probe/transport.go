// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package probe

import "context"

// Transport is the USB/HID (or serial-CDC) link to the physical probe.
// It is the one external collaborator the spec places out of scope
// (§1); Session implementations depend on it through this interface so
// that the family logic in session.go is testable against a fake.
type Transport interface {
	// Exchange sends out and returns the probe's reply, or an error if
	// the exchange could not complete before ctx is done.
	Exchange(ctx context.Context, out []byte) ([]byte, error)
	Close() error
}
