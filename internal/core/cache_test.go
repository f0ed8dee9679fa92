// Copyright © 2024 Jeff Berkowitz (pdxjjb@gmail.com)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.

package core

import "testing"

func newTestCacheAS() *AddressSpace {
	as := NewAddressSpace(nil)
	as.Register(NewRAMRegion("ram", 0, 0x10000, 0, 0))
	return as
}

func TestCacheDisabledForwardsDirectly(t *testing.T) {
	c := NewCache(16, 4, 2, 1, 10, false)
	as := newTestCacheAS()

	if _, err := c.Access(as, 0x100, 4, true, 0xABCD1234); err != nil {
		t.Fatalf("write: %v", err)
	}
	v, err := c.Access(as, 0x100, 4, false, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v != 0xABCD1234 {
		t.Errorf("v = 0x%x, want 0xabcd1234", v)
	}
}

func TestCacheWriteThroughRoundTrip(t *testing.T) {
	c := NewCache(16, 4, 2, 1, 10, false)
	c.Enabled = true
	as := newTestCacheAS()

	if _, err := c.Access(as, 0x40, 4, true, 0x11223344); err != nil {
		t.Fatalf("write: %v", err)
	}
	v, err := c.Access(as, 0x40, 4, false, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v != 0x11223344 {
		t.Errorf("v = 0x%x, want 0x11223344", v)
	}
	// Write-through: memory itself must already reflect the write.
	direct, _ := as.Read32(0x40)
	if direct != 0x11223344 {
		t.Errorf("underlying memory = 0x%x, want 0x11223344 (write-through)", direct)
	}
}

func TestCacheWriteBackDefersMemoryUpdate(t *testing.T) {
	c := NewCache(16, 4, 2, 1, 10, true)
	c.Enabled = true
	as := newTestCacheAS()

	if _, err := c.Access(as, 0x80, 4, true, 0x99999999); err != nil {
		t.Fatalf("write: %v", err)
	}
	direct, _ := as.Read32(0x80)
	if direct == 0x99999999 {
		t.Errorf("underlying memory updated immediately; write-back should defer until eviction")
	}

	v, err := c.Access(as, 0x80, 4, false, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v != 0x99999999 {
		t.Errorf("v = 0x%x, want 0x99999999 (cache line itself holds the new value)", v)
	}
}

func TestCacheEvictionWritesBackDirtyLine(t *testing.T) {
	c := NewCache(16, 1, 1, 1, 10, true) // 1 set, 1 way: every miss evicts
	c.Enabled = true
	as := newTestCacheAS()

	if _, err := c.Access(as, 0x0, 4, true, 0xAAAAAAAA); err != nil {
		t.Fatalf("write first line: %v", err)
	}
	// Access a different line in the same (only) set, forcing eviction
	// of the dirty line at address 0.
	if _, err := c.Access(as, 0x1000, 4, false, 0); err != nil {
		t.Fatalf("access second line: %v", err)
	}

	direct, _ := as.Read32(0x0)
	if direct != 0xAAAAAAAA {
		t.Errorf("memory at evicted line = 0x%x, want 0xaaaaaaaa (write-back on eviction)", direct)
	}
}

func TestCacheMissAndHitDelaysAccumulate(t *testing.T) {
	c := NewCache(16, 4, 2, 2, 30, false)
	c.Enabled = true
	as := newTestCacheAS()

	if _, err := c.Access(as, 0x200, 4, false, 0); err != nil { // miss
		t.Fatalf("miss access: %v", err)
	}
	missCycles := as.TakeMemCycles()
	if missCycles != 30+2 {
		t.Errorf("miss cycles = %d, want %d (miss delay + hit delay)", missCycles, 32)
	}

	if _, err := c.Access(as, 0x200, 4, false, 0); err != nil { // hit
		t.Fatalf("hit access: %v", err)
	}
	hitCycles := as.TakeMemCycles()
	if hitCycles != 2 {
		t.Errorf("hit cycles = %d, want 2", hitCycles)
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(16, 4, 2, 1, 10, false)
	c.Enabled = true
	as := newTestCacheAS()

	if _, err := c.Access(as, 0x300, 4, true, 0x1); err != nil {
		t.Fatalf("write: %v", err)
	}
	c.Invalidate(0x300)
	as.TakeMemCycles()

	if _, err := c.Access(as, 0x300, 4, false, 0); err != nil {
		t.Fatalf("read after invalidate: %v", err)
	}
	if cycles := as.TakeMemCycles(); cycles != 1+10 {
		t.Errorf("cycles = %d, want %d (forced re-fill after invalidate)", cycles, 11)
	}
}
