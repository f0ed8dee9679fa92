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

// pcuState holds the performance-counter unit's mode and count
// registers (supplemented feature, grounded on
// original_source/pcu/pcu.c). Each of the NumPCCRs counters has an
// independent mode register (PCMR) selecting which event classes it
// counts and in which privilege mode.
type pcuState struct {
	mode  [NumPCCRs]uint32
	count [NumPCCRs]uint32
}

func (p *pcuState) reset() {
	*p = pcuState{}
}

// countEvent increments every counter whose PCMR selects event and
// whose privilege-mode bit matches the CPU's current mode, mirroring
// pcu_count_event's loop over all NumPCCRs counters.
func (sim *Simulator) countEvent(event uint32) {
	sm := sim.CPU.SR&SR_SM != 0
	for i := 0; i < NumPCCRs; i++ {
		m := sim.pcu.mode[i]
		if m&event == 0 {
			continue
		}
		if (m&PCMR_CISM != 0 && sm) || (m&PCMR_CIUM != 0 && !sm) {
			sim.pcu.count[i]++
		}
	}
}
