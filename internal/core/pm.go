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

// Power management bits packed into SPR_PMR (original_source/ pm.c,
// supplemented feature: the distilled spec is silent on power
// management, the original implementation models it as a single
// control register with sleep/doze/suspend bits).
const (
	PMR_SDF  = 0x000000FF // stop divide factor, not modeled: kept for bit compatibility
	PMR_DME  = 1 << 8      // doze mode enable
	PMR_SME  = 1 << 9      // sleep mode enable
	PMR_DCGE = 1 << 10     // dynamic clock gating enable, not modeled
	PMR_SUME = 1 << 11     // suspend mode enable
)

// pmState is the power-management subsystem's runtime state
// (supplemented feature, grounded on original_source/pm.c). When the
// CPU writes SME or SUME to SPR_PMR, the executor stops fetching new
// instructions and skip-advances the scheduler until an enabled
// interrupt line wakes it back up, modeling the host-visible effect of
// the original implementation's pm_sleep() without trying to model
// clock gating or doze timing precisely.
type pmState struct {
	reg     uint32
	asleep  bool
}

func (p *pmState) reset() {
	*p = pmState{}
}

// write applies a write to SPR_PMR. Entering sleep or suspend mode
// sets asleep; the executor checks Asleep() before each fetch and, if
// true, skips straight to running the scheduler and checking for a
// wake-up interrupt instead of decoding an instruction.
func (p *pmState) write(value uint32) {
	p.reg = value
	if value&(PMR_SME|PMR_SUME) != 0 {
		p.asleep = true
	}
}

func (p *pmState) read() uint32 { return p.reg }

// wake clears sleep state; called by the executor once a pending,
// unmasked interrupt is observed while asleep.
func (p *pmState) wake() {
	p.asleep = false
	p.reg &^= PMR_SME | PMR_SUME
}

func (p *pmState) Asleep() bool { return p.asleep }

// Asleep reports whether the simulator is currently in a power-managed
// sleep state (supplemented feature).
func (sim *Simulator) Asleep() bool { return sim.pm.Asleep() }
