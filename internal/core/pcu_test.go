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

func TestPCUCountsOnlyInConfiguredMode(t *testing.T) {
	sim := newTestSim()
	sim.pcu.mode[0] = PCMR_CP | PCMR_CISM | PCU_EventFetch
	sim.pcu.mode[1] = PCMR_CP | PCMR_CIUM | PCU_EventFetch

	sim.CPU.SR |= SR_SM // supervisor mode
	sim.countEvent(PCU_EventFetch)

	if sim.pcu.count[0] != 1 {
		t.Errorf("counter 0 (supervisor-mode) = %d, want 1", sim.pcu.count[0])
	}
	if sim.pcu.count[1] != 0 {
		t.Errorf("counter 1 (user-mode) = %d, want 0 while running in supervisor mode", sim.pcu.count[1])
	}
}

func TestPCUIgnoresUnselectedEvents(t *testing.T) {
	sim := newTestSim()
	sim.pcu.mode[0] = PCMR_CP | PCMR_CISM | PCU_EventLSU
	sim.CPU.SR |= SR_SM

	sim.countEvent(PCU_EventFetch)
	if sim.pcu.count[0] != 0 {
		t.Errorf("counter 0 = %d, want 0: event not selected by its PCMR", sim.pcu.count[0])
	}
}

func TestPCUResetClearsCounts(t *testing.T) {
	sim := newTestSim()
	sim.pcu.count[3] = 42
	sim.pcu.reset()
	if sim.pcu.count[3] != 0 {
		t.Errorf("count[3] = %d, want 0 after reset", sim.pcu.count[3])
	}
}
