// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package target

import "testing"

func TestLoadCatalogResolvesSignature(t *testing.T) {
	cat, err := LoadCatalog("../../catalog")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	d, err := cat.Lookup([3]byte{0x1E, 0x95, 0x0F})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if d.Name != "ATmega328P" {
		t.Fatalf("got %q, want ATmega328P", d.Name)
	}
	if d.RamOffset != DefaultRamOffset || d.EepromOffset != DefaultEepromOffset {
		t.Fatalf("offsets not defaulted: %+v", d)
	}
}

func TestLoadCatalogUnknownSignature(t *testing.T) {
	cat, err := LoadCatalog("../../catalog")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	_, err = cat.Lookup([3]byte{0xFF, 0xFF, 0xFF})
	if err == nil {
		t.Fatal("expected a ConfigError")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("got %T, want *ConfigError", err)
	}
}
