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

func TestPMSleepAndWake(t *testing.T) {
	sim := newTestSim()
	sim.CPU.SR |= SR_IEE
	sim.PIC.SetMask(0xFFFFFFFF)

	if err := sim.WriteSPR(SPR_PMR, PMR_SME); err != nil {
		t.Fatalf("WriteSPR: %v", err)
	}
	if !sim.Asleep() {
		t.Fatalf("Asleep() = false, want true after setting PMR_SME")
	}

	cyclesBefore := sim.cycles
	if err := sim.Step(); err != nil { // no pending interrupt: stays asleep
		t.Fatalf("Step: %v", err)
	}
	if !sim.Asleep() {
		t.Errorf("Asleep() = false, want still asleep with no pending interrupt")
	}
	if sim.cycles != cyclesBefore+1 {
		t.Errorf("cycles advanced by %d, want 1 even while asleep", sim.cycles-cyclesBefore)
	}

	sim.PIC.Raise(0)
	if err := sim.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if sim.Asleep() {
		t.Errorf("Asleep() = true, want false: a pending unmasked interrupt must wake the core")
	}
}

func TestPMWriteWithoutSleepBitsDoesNotSleep(t *testing.T) {
	sim := newTestSim()
	if err := sim.WriteSPR(SPR_PMR, PMR_DME); err != nil {
		t.Fatalf("WriteSPR: %v", err)
	}
	if sim.Asleep() {
		t.Errorf("Asleep() = true, want false: PMR_DME alone does not sleep the core")
	}
}
