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

// ResetHook is one subsystem's reset callback; there is no separate
// shutdown-hook list. Component J
// (spec.md §9) is this ordered list rather than any piece of state of
// its own: every peripheral or subsystem that needs to do something on
// reset registers a hook, and Reset runs them leaves-first, in
// registration order, after the architectural state itself has been
// re-homed.
type ResetHook func()

// AddResetHook registers a subsystem reset callback.
func (sim *Simulator) AddResetHook(h ResetHook) {
	sim.resetHooks = append(sim.resetHooks, h)
}

// Reset implements the embedding API's init/reset entry point
// (spec.md §6): it re-homes the CPU at PC 0 in supervisor mode (a
// fresh NewCPUState, not the ExcReset vector offset), flushes both
// MMUs, resets power management and the performance counters, and
// then runs every registered reset hook in order, so a peripheral
// wired in after construction still gets a reset callback even though
// it is not itself one of the fixed architectural components.
func (sim *Simulator) Reset() {
	sim.CPU = NewCPUState()
	sim.cycles = 0
	sim.halted = false
	sim.pendingExc = nil
	sim.lastIntLine = -1
	sim.pm.reset()
	sim.pcu.reset()
	if sim.IMMU != nil {
		sim.IMMU.Flush()
	}
	if sim.DMMU != nil {
		sim.DMMU.Flush()
	}
	for _, hook := range sim.resetHooks {
		hook()
	}
}
