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

import "github.com/openrisc-sim/or1kcore/internal/trace"

// NumIntLines bounds the external interrupt line numbers this PIC
// supports; a 32-bit bitmap per spec.md §3's ext_int_set/ext_int_clr.
const NumIntLines = 32

// InterruptController is component E.
type InterruptController struct {
	Enabled bool
	UseNMI  bool

	mask    uint32
	pending uint32
	served  uint32

	// edgeTriggered[line] is true for edge-triggered lines (one-shot,
	// auto-deasserts on delivery); false means level-triggered
	// (persists until Clear is called).
	edgeTriggered [NumIntLines]bool

	tracer *trace.Tracer
}

func NewInterruptController(tracer *trace.Tracer) *InterruptController {
	ic := &InterruptController{tracer: tracer, mask: 0xFFFFFFFF}
	return ic
}

// SetLineMode configures whether line is edge- or level-triggered.
func (ic *InterruptController) SetLineMode(line int, edge bool) {
	if line < 0 || line >= NumIntLines {
		return
	}
	ic.edgeTriggered[line] = edge
}

// SetMask installs the PIC mask register (bit set = line unmasked),
// effective immediately per spec.md §4.6.
func (ic *InterruptController) SetMask(mask uint32) { ic.mask = mask }

// Mask returns the current PIC mask register.
func (ic *InterruptController) Mask() uint32 { return ic.mask }

// Status returns the pending bitmap for the PIC status SPR.
func (ic *InterruptController) Status() uint32 { return ic.pending }

// ClearStatus implements write-1-to-clear semantics on the PIC status
// register (spec.md §4.6).
func (ic *InterruptController) ClearStatus(writeValue uint32) {
	ic.pending &^= writeValue
	ic.served &^= writeValue
}

// Raise is an edge pulse from an external caller or peripheral,
// subject to the configured mask (spec.md §4.5). Raising an
// edge-triggered line twice before the handler completes delivers
// only one exception (idempotence, spec.md §8 property 5): the
// pending bit is simply set, not incremented.
func (ic *InterruptController) Raise(line int) {
	if line < 0 || line >= NumIntLines {
		return
	}
	ic.pending |= 1 << uint(line)
}

// Clear deasserts line; only meaningful for level-triggered mode
// (spec.md §4.5). On an edge-triggered line this is a no-op logged as
// an assertion-mode mismatch, per spec.md §7.
func (ic *InterruptController) Clear(line int) {
	if line < 0 || line >= NumIntLines {
		return
	}
	if ic.edgeTriggered[line] {
		ic.tracer.Printf("interrupt: clear on edge-triggered line %d ignored\n", line)
		return
	}
	ic.pending &^= 1 << uint(line)
	ic.served &^= 1 << uint(line)
}

// Report is a synchronous assertion from within the executor's own
// context between instructions (spec.md §4.5), e.g. the tick timer.
func (ic *InterruptController) Report(line int) { ic.Raise(line) }

// NMILine is the reserved non-maskable line when UseNMI is set: it
// bypasses the mask register but still respects the CPU's global
// interrupt-enable (spec.md §4.5).
const NMILine = NumIntLines - 1

// Pending returns the lowest-numbered pending, unmasked line and true,
// or (0, false) if none is pending. A line already `served` is
// withheld from re-delivery until the handler's rfe acknowledges it
// via AckHandlerEntry, which is how a level-triggered line re-fires
// "on the next cycle" after its handler returns rather than storming
// the dispatch loop mid-handler.
func (ic *InterruptController) Pending() (line int, ok bool) {
	eligible := ic.pending & ic.mask &^ ic.served
	if ic.UseNMI && ic.pending&^ic.served&(1<<uint(NMILine)) != 0 {
		eligible |= 1 << uint(NMILine)
	}
	if eligible == 0 {
		return 0, false
	}
	for i := 0; i < NumIntLines; i++ {
		if eligible&(1<<uint(i)) != 0 {
			return i, true
		}
	}
	return 0, false
}

// Deliver marks line as served and, if edge-triggered, auto-clears it
// from pending (spec.md §4.5 step 3).
func (ic *InterruptController) Deliver(line int) {
	ic.served |= 1 << uint(line)
	if ic.edgeTriggered[line] {
		ic.pending &^= 1 << uint(line)
	}
	if ic.tracer != nil {
		ic.tracer.Interrupt(line, ic.edgeTriggered[line])
	}
}

// AckHandlerEntry clears `served` for lines whose handler has
// returned, called by RFE so a level-triggered line that is still
// asserted will re-fire on the next eligible cycle (spec.md §8
// property 6: interrupt persistence).
func (ic *InterruptController) AckHandlerEntry(line int) {
	ic.served &^= 1 << uint(line)
}
