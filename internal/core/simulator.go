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
	"github.com/openrisc-sim/or1kcore/internal/debug"
	"github.com/openrisc-sim/or1kcore/internal/trace"
)

// Simulator is the single owning container (spec.md §6): it wires
// together every core component and is the receiver for the
// embedding API (Run, Interrupt, JTAG shift, generic peripheral
// upcalls). Everything that needs more than one component's state —
// SPR side effects, the executor's dispatch loop, the reset bus —
// is a method on *Simulator rather than on an individual component.
type Simulator struct {
	CPU *CPUState

	AS     *AddressSpace
	ICache *Cache
	DCache *Cache
	IMMU   *MMU
	DMMU   *MMU
	PIC    *InterruptController
	Sched  *Scheduler

	Tracer *trace.Tracer

	// JTAG is component I (spec.md §4.9), attached lazily by
	// AttachJTAG once the embedding host decides debug access is
	// enabled (internal/config's debug.enabled). nil means no debug
	// unit is present, the same as a board with the TAP left
	// unconnected: Run never checks it and the jtag_* embedding calls
	// report an error instead of panicking.
	JTAG *debug.TAP

	// ClockHz is the simulated core clock rate in Hz, reported to the
	// embedding host by ClockRate (spec.md §6).
	ClockHz uint64

	// cycles counts total retired-instruction cycles since the last
	// reset, used by the ResetDuration budget and by GetElapsedPeriod.
	cycles uint64

	// timePoint is the cycle recorded by the last SetTimePoint call,
	// the baseline GetTimePeriod measures elapsed simulated time from.
	timePoint uint64

	// budgetUntilCycle is an absolute cycle count set by ResetDuration,
	// separate from the maxCycles a Run call was invoked with: it lets
	// an embedder shrink the remaining run budget from outside, at any
	// of the suspension points spec.md §5 names, without having to
	// stop and re-invoke Run with a smaller maxCycles. 0 means no
	// separate budget is armed.
	budgetUntilCycle uint64

	// brkpt is set when Run returns early because the attached TAP
	// asked for a stall (spec.md §5's "a debug breakpoint fires"),
	// distinguishing that suspension from a guest halt or an exhausted
	// cycle budget.
	brkpt bool

	pm  pmState
	pcu pcuState

	resetHooks []ResetHook

	// pendingExc lets a peripheral upcall or a scheduled
	// event (e.g. the tick timer firing) request that the executor
	// take an exception on its next dispatch, since those callbacks
	// run outside the normal fetch/execute path.
	pendingExc *ArchException

	// branched is set by the executor when the just-dispatched
	// instruction already updated PC itself (l.rfe, or an exception
	// vectoring), so Step's normal PC+4 advance is skipped for this
	// cycle; retire clears it.
	branched bool

	// lastIntLine is the PIC line most recently vectored as an
	// external interrupt, consumed by Rfe's AckHandlerEntry call. -1
	// means no interrupt is currently being handled.
	lastIntLine int

	halted bool
}

// NewSimulator constructs a Simulator with the given components
// already built and configured by the caller (cmd/or1ksim reads
// internal/config and does the wiring; core stays agnostic of the
// config file format).
func NewSimulator(as *AddressSpace, icache, dcache *Cache, immu, dmmu *MMU, pic *InterruptController, sched *Scheduler, tracer *trace.Tracer, clockHz uint64) *Simulator {
	sim := &Simulator{
		CPU: NewCPUState(),

		AS: as, ICache: icache, DCache: dcache,
		IMMU: immu, DMMU: dmmu, PIC: pic, Sched: sched,
		Tracer: tracer, ClockHz: clockHz,
		lastIntLine: -1,
	}
	sim.pcu.reset()
	return sim
}

// ClockRate reports the simulated clock rate in Hz (spec.md §6).
func (sim *Simulator) ClockRate() uint64 { return sim.ClockHz }

// IsLittleEndian always reports false: every load/store in this
// simulator is big-endian (spec.md §4.1, §6).
func (sim *Simulator) IsLittleEndian() bool { return false }

// Cycles returns the total number of retired-instruction cycles since
// the last reset (spec.md §6's get_time_period/reset_duration base).
func (sim *Simulator) Cycles() uint64 { return sim.cycles }

// GetTimePeriod converts a cycle count into nanoseconds at the
// configured clock rate (spec.md §6).
func (sim *Simulator) GetTimePeriod(cycles uint64) uint64 {
	if sim.ClockHz == 0 {
		return 0
	}
	return cycles * 1_000_000_000 / sim.ClockHz
}

// SetTimePoint implements set_time_point() (spec.md §6): marks the
// current cycle count as the baseline a later get_time_period() call
// measures elapsed simulated time from.
func (sim *Simulator) SetTimePoint() {
	sim.timePoint = sim.cycles
}

// GetElapsedPeriod returns the simulated nanoseconds elapsed since the
// last SetTimePoint call, the paired get_time_period() half of
// set_time_point() (spec.md §6).
func (sim *Simulator) GetElapsedPeriod() uint64 {
	return sim.GetTimePeriod(sim.cycles - sim.timePoint)
}

// ResetDuration implements reset_duration(seconds) (spec.md §5, §6):
// arms a cycle budget, separate from a Run call's own maxCycles
// argument, that Run also honors. Calling this from a suspension point
// (including from another goroutine while Run is between
// instructions) lets an embedder shrink how much further Run will go
// without restarting it.
func (sim *Simulator) ResetDuration(seconds float64) {
	if seconds < 0 {
		sim.budgetUntilCycle = 0
		return
	}
	sim.budgetUntilCycle = sim.cycles + uint64(seconds*float64(sim.ClockHz)+0.5)
}

// Breakpoint reports whether the most recent Run call returned early
// because the attached TAP requested a stall, as opposed to the guest
// halting or the cycle budget running out.
func (sim *Simulator) Breakpoint() bool { return sim.brkpt }

// InterruptSet asserts an external interrupt line (spec.md §6's
// interrupt_set), forwarding to the PIC.
func (sim *Simulator) InterruptSet(line int) {
	if sim.PIC != nil {
		sim.PIC.Raise(line)
	}
}

// InterruptClear deasserts a level-triggered external interrupt line
// (spec.md §6's interrupt_clear).
func (sim *Simulator) InterruptClear(line int) {
	if sim.PIC != nil {
		sim.PIC.Clear(line)
	}
}

// Halted reports whether the executor has stopped dispatching because
// the guest executed l.nop with the NopExit host-hook code.
func (sim *Simulator) Halted() bool { return sim.halted }

// AttachJTAG wires component I to this simulator's address space and
// SPR file, the way cmd/or1ksim's buildSimulator does when
// config.DebugConfig.Enabled is set. Called at most once; a second
// call replaces the TAP with a freshly reset one.
func (sim *Simulator) AttachJTAG() *debug.TAP {
	sim.JTAG = debug.NewTAP(sim.AS, sim)
	return sim.JTAG
}

// JTAGReset implements the jtag_reset() embedding call (spec.md §6):
// puts the TAP back in its post-power-up state.
func (sim *Simulator) JTAGReset() error {
	if sim.JTAG == nil {
		return newHostError("jtag_reset: no debug unit attached")
	}
	sim.JTAG.Reset()
	return nil
}

// JTAGShiftIR implements the jtag_shift_ir(buf) embedding call
// (spec.md §6, §4.9): loads the instruction register that selects
// which DEBUG data register the next ShiftDR call addresses.
func (sim *Simulator) JTAGShiftIR(ir uint8) error {
	if sim.JTAG == nil {
		return newHostError("jtag_shift_ir: no debug unit attached")
	}
	sim.JTAG.ShiftIR(ir)
	return nil
}

// JTAGShiftDR implements the jtag_shift_dr(buf) embedding call
// (spec.md §6, §4.9): dispatches the decoded DEBUG command to the
// attached TAP.
func (sim *Simulator) JTAGShiftDR(req debug.DRRequest) (debug.DRResponse, error) {
	if sim.JTAG == nil {
		return debug.DRResponse{}, newHostError("jtag_shift_dr: no debug unit attached")
	}
	return sim.JTAG.ShiftDR(req), nil
}

// breakpointHit reports whether the attached TAP has asked Run to
// suspend (spec.md §5's "a debug breakpoint fires"): a WRITE_CONTROL
// stall request is this simulator's debug-breakpoint equivalent, since
// the JTAG protocol itself has no separate breakpoint-address concept
// beyond halting the CPU and inspecting/modifying state directly.
func (sim *Simulator) breakpointHit() bool {
	return sim.JTAG != nil && sim.JTAG.StallRequested()
}
