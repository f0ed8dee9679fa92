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

import (
	"github.com/openrisc-sim/or1kcore/internal/trace"
)

// RegionOps are the width-typed access callbacks a memory region
// installs (spec.md §4.1). Program variants bypass dirty-page
// bookkeeping the way an image loader does. A region can refuse reads
// or writes outright (ROM, write-only registers) by leaving the
// corresponding callback nil: such an access is logged to the
// region's Log and ignored (a read returns 0), not reported as a bus
// error. A nil program-write callback makes the program write fail
// with a host error.
type RegionOps struct {
	Read8   func(off uint32) (uint32, error)
	Read16  func(off uint32) (uint32, error)
	Read32  func(off uint32) (uint32, error)
	Write8  func(off uint32, v uint32) error
	Write16 func(off uint32, v uint32) error
	Write32 func(off uint32, v uint32) error

	// ProgramWrite8/32 bypass dirty tracking; used only by image
	// loaders (see cmd/or1ksim's loadImage for the policy on this
	// bypass).
	ProgramWrite8  func(off uint32, v uint32) error
	ProgramWrite32 func(off uint32, v uint32) error
}

// Region is one registered memory region descriptor (spec.md §3).
type Region struct {
	Name string
	Base uint32
	Size uint32
	Ops  RegionOps

	DelayRead  uint32
	DelayWrite uint32

	Valid bool

	// AddrMask/AddrCompare implement the chip-select overlay: a region
	// only matches when (addr & AddrMask) == AddrCompare. The zero
	// value (mask 0) always matches.
	AddrMask    uint32
	AddrCompare uint32

	Log *trace.Tracer

	// overlay marks a region registered via RegisterOverlay, which is
	// allowed to shadow an existing primary mapping (memory
	// controller chip-select behaviour, spec.md §3 invariants).
	overlay bool
}

func (r *Region) matches(addr uint32) bool {
	if !r.Valid {
		return false
	}
	if addr < r.Base || addr >= r.Base+r.Size {
		return false
	}
	if r.AddrMask != 0 && (addr&r.AddrMask) != r.AddrCompare {
		return false
	}
	return true
}

// AddressSpace is component A: it maps a physical address to a region
// and dispatches width-typed accesses to that region's callbacks.
type AddressSpace struct {
	regions []*Region
	tracer  *trace.Tracer

	// memCycles accumulates the delay of the accesses performed
	// during the current instruction; the executor folds it into the
	// global cycle counter at retire and resets it to zero.
	memCycles uint32
}

func NewAddressSpace(tracer *trace.Tracer) *AddressSpace {
	return &AddressSpace{tracer: tracer}
}

// Register adds a region to the map. Overlapping registrations are an
// error unless one of the two regions is an overlay (memory
// controller chip-select), per spec.md §3's invariant.
func (as *AddressSpace) Register(r *Region) error {
	for _, existing := range as.regions {
		if regionsOverlap(existing, r) {
			if r.overlay || existing.overlay {
				continue
			}
			return newHostError("region %q overlaps existing region %q", r.Name, existing.Name)
		}
	}
	as.regions = append(as.regions, r)
	return nil
}

// RegisterOverlay registers r even if it overlaps an existing
// mapping, letting a memory controller replace the primary decode
// with a chip-select-qualified one (spec.md §3).
func (as *AddressSpace) RegisterOverlay(r *Region) error {
	r.overlay = true
	as.regions = append(as.regions, r)
	return nil
}

func regionsOverlap(a, b *Region) bool {
	aEnd := a.Base + a.Size
	bEnd := b.Base + b.Size
	return a.Base < bEnd && b.Base < aEnd
}

// find returns the first matching, valid region for addr. Overlay
// regions are registered later and are scanned first so a chip-select
// overlay wins over the primary mapping it shadows.
func (as *AddressSpace) find(addr uint32) *Region {
	for i := len(as.regions) - 1; i >= 0; i-- {
		if as.regions[i].matches(addr) {
			return as.regions[i]
		}
	}
	return nil
}

func (as *AddressSpace) chargeRead(r *Region) {
	as.memCycles += r.DelayRead
}

func (as *AddressSpace) chargeWrite(r *Region) {
	as.memCycles += r.DelayWrite
}

// TakeMemCycles returns and resets the accumulated memory-access delay
// for the current instruction (spec.md §4.8's mem_cycles accumulator).
func (as *AddressSpace) TakeMemCycles() uint32 {
	n := as.memCycles
	as.memCycles = 0
	return n
}

func checkAlign(addr uint32, width int) error {
	if width == 1 {
		return nil
	}
	if width == 2 && addr&1 != 0 {
		return newExc(ExcAlignment, addr)
	}
	if width == 4 && addr&3 != 0 {
		return newExc(ExcAlignment, addr)
	}
	return nil
}

// Read8/Read16/Read32 perform a width-typed big-endian read.
func (as *AddressSpace) Read8(addr uint32) (uint32, error)  { return as.read(addr, 1) }
func (as *AddressSpace) Read16(addr uint32) (uint32, error) { return as.read(addr, 2) }
func (as *AddressSpace) Read32(addr uint32) (uint32, error) { return as.read(addr, 4) }

func (as *AddressSpace) read(addr uint32, width int) (uint32, error) {
	if err := checkAlign(addr, width); err != nil {
		return 0, err
	}
	r := as.find(addr)
	if r == nil {
		return 0, newExc(ExcBusError, addr)
	}
	off := addr - r.Base
	var fn func(uint32) (uint32, error)
	switch width {
	case 1:
		fn = r.Ops.Read8
	case 2:
		fn = r.Ops.Read16
	case 4:
		fn = r.Ops.Read32
	}
	if fn == nil {
		r.Log.Printf("region %q: unsupported %d-bit read at off=0x%x, logged and ignored\n", r.Name, width*8, off)
		return 0, nil
	}
	v, err := fn(off)
	if err != nil {
		return 0, newExc(ExcBusError, addr)
	}
	as.chargeRead(r)
	if as.tracer != nil {
		as.tracer.MemoryRead(addr, addr, width*8, v)
	}
	return v, nil
}

func (as *AddressSpace) Write8(addr uint32, v uint32) error  { return as.write(addr, 1, v, false) }
func (as *AddressSpace) Write16(addr uint32, v uint32) error { return as.write(addr, 2, v, false) }
func (as *AddressSpace) Write32(addr uint32, v uint32) error { return as.write(addr, 4, v, false) }

// ProgramWrite8/32 bypass dirty-page bookkeeping: used by an image
// loader to push bytes into memory without the side effects an
// ordinary guest store would have.
func (as *AddressSpace) ProgramWrite8(addr uint32, v uint32) error  { return as.write(addr, 1, v, true) }
func (as *AddressSpace) ProgramWrite32(addr uint32, v uint32) error { return as.write(addr, 4, v, true) }

func (as *AddressSpace) write(addr uint32, width int, v uint32, program bool) error {
	if err := checkAlign(addr, width); err != nil {
		return err
	}
	r := as.find(addr)
	if r == nil {
		return newExc(ExcBusError, addr)
	}
	off := addr - r.Base

	if program {
		var fn func(uint32, uint32) error
		if width == 1 {
			fn = r.Ops.ProgramWrite8
		} else {
			fn = r.Ops.ProgramWrite32
		}
		if fn == nil {
			return newHostError("region %q has no program-write callback for width %d", r.Name, width)
		}
		return fn(off, v)
	}

	var fn func(uint32, uint32) error
	switch width {
	case 1:
		fn = r.Ops.Write8
	case 2:
		fn = r.Ops.Write16
	case 4:
		fn = r.Ops.Write32
	}
	if fn == nil {
		r.Log.Printf("region %q: unsupported %d-bit write at off=0x%x, logged and ignored\n", r.Name, width*8, off)
		return nil
	}
	if err := fn(off, v); err != nil {
		return newExc(ExcBusError, addr)
	}
	as.chargeWrite(r)
	if as.tracer != nil {
		as.tracer.MemoryWrite(addr, addr, width*8, v)
	}
	return nil
}

// NewRAMRegion builds a region descriptor backed by a plain byte
// slice, big-endian, read/write/program-write all enabled. This is
// the building block peripherals and the image loader use; it is not
// itself part of the architectural component, only a convenience
// shared by cmd/or1ksim and the test suite.
func NewRAMRegion(name string, base, size uint32, delayRead, delayWrite uint32) *Region {
	mem := make([]byte, size)
	ops := RegionOps{
		Read8:  func(off uint32) (uint32, error) { return uint32(mem[off]), nil },
		Read16: func(off uint32) (uint32, error) { return uint32(mem[off])<<8 | uint32(mem[off+1]), nil },
		Read32: func(off uint32) (uint32, error) {
			return uint32(mem[off])<<24 | uint32(mem[off+1])<<16 | uint32(mem[off+2])<<8 | uint32(mem[off+3]), nil
		},
		Write8: func(off uint32, v uint32) error { mem[off] = byte(v); return nil },
		Write16: func(off uint32, v uint32) error {
			mem[off] = byte(v >> 8)
			mem[off+1] = byte(v)
			return nil
		},
		Write32: func(off uint32, v uint32) error {
			mem[off] = byte(v >> 24)
			mem[off+1] = byte(v >> 16)
			mem[off+2] = byte(v >> 8)
			mem[off+3] = byte(v)
			return nil
		},
	}
	ops.ProgramWrite8 = ops.Write8
	ops.ProgramWrite32 = ops.Write32
	return &Region{
		Name: name, Base: base, Size: size, Ops: ops,
		DelayRead: delayRead, DelayWrite: delayWrite, Valid: true,
	}
}

// NewROMRegion is like NewRAMRegion but refuses guest writes (logged,
// ignored); ProgramWrite still works so a loader can populate it.
func NewROMRegion(name string, base, size uint32, delayRead uint32) *Region {
	mem := make([]byte, size)
	r := &Region{
		Name: name, Base: base, Size: size, Valid: true,
		DelayRead: delayRead,
	}
	r.Ops = RegionOps{
		Read8:  func(off uint32) (uint32, error) { return uint32(mem[off]), nil },
		Read16: func(off uint32) (uint32, error) { return uint32(mem[off])<<8 | uint32(mem[off+1]), nil },
		Read32: func(off uint32) (uint32, error) {
			return uint32(mem[off])<<24 | uint32(mem[off+1])<<16 | uint32(mem[off+2])<<8 | uint32(mem[off+3]), nil
		},
		ProgramWrite8: func(off uint32, v uint32) error { mem[off] = byte(v); return nil },
		ProgramWrite32: func(off uint32, v uint32) error {
			mem[off] = byte(v >> 24)
			mem[off+1] = byte(v >> 16)
			mem[off+2] = byte(v >> 8)
			mem[off+3] = byte(v)
			return nil
		},
	}
	return r
}
