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

// ReadSPR and WriteSPR implement mfspr/mtspr (spec.md §4.6), dispatched
// the way the teacher's loadSPR/storeSPR switch does it: a handful of
// SPR numbers carry side effects (MMU, cache, PIC, timer, power
// management, performance counters), everything else is plain storage
// in CPUState.SPR. Both are privileged; a user-mode access to any SPR
// other than SPR_SR is reported as an illegal instruction, matching
// the teacher's user-mode access check in spr.go.

// ReadSPR returns the current value of SPR number n.
func (sim *Simulator) ReadSPR(n uint16) (uint32, error) {
	cpu := sim.CPU
	if cpu.Mode == ModeUser && n != SPR_SR {
		return 0, newExc(ExcIllegalInsn, 0)
	}

	switch {
	case n == SPR_VR, n == SPR_UPR, n == SPR_CPUCFGR:
		return cpu.SPR[n], nil
	case n == SPR_SR:
		return cpu.SR, nil
	case n == SPR_EPCR, n == SPR_EEAR, n == SPR_ESR:
		return cpu.SPR[n], nil
	case n == SPR_PICMR:
		return sim.PIC.Mask(), nil
	case n == SPR_PICSR:
		return sim.PIC.Status(), nil
	case n == SPR_TTMR:
		return cpu.SPR[SPR_TTMR], nil
	case n == SPR_TTCR:
		return cpu.SPR[SPR_TTCR], nil
	case n == SPR_PMR:
		return sim.pm.read(), nil
	case n >= SPR_PCCR_BASE && n < SPR_PCCR_BASE+NumPCCRs:
		return sim.pcu.count[n-SPR_PCCR_BASE], nil
	case n >= SPR_PCMR_BASE && n < SPR_PCMR_BASE+NumPCCRs:
		return sim.pcu.mode[n-SPR_PCMR_BASE], nil
	case n >= SPR_DMMU_MATCH_BASE && n < SPR_DMMU_TRANSLATE_BASE:
		return sim.readMMUMatch(sim.DMMU, n-SPR_DMMU_MATCH_BASE), nil
	case n >= SPR_DMMU_TRANSLATE_BASE && n < SPR_DMMU_TRANSLATE_BASE+0x80:
		return sim.readMMUTranslate(sim.DMMU, n-SPR_DMMU_TRANSLATE_BASE), nil
	case n >= SPR_IMMU_MATCH_BASE && n < SPR_IMMU_TRANSLATE_BASE:
		return sim.readMMUMatch(sim.IMMU, n-SPR_IMMU_MATCH_BASE), nil
	case n >= SPR_IMMU_TRANSLATE_BASE && n < SPR_IMMU_TRANSLATE_BASE+0x80:
		return sim.readMMUTranslate(sim.IMMU, n-SPR_IMMU_TRANSLATE_BASE), nil
	default:
		return cpu.SPR[n], nil
	}
}

// WriteSPR applies a write to SPR number n, with side effects
// dispatched per spec.md §4.6.
func (sim *Simulator) WriteSPR(n uint16, value uint32) error {
	cpu := sim.CPU
	if cpu.Mode == ModeUser && n != SPR_SR {
		return newExc(ExcIllegalInsn, 0)
	}

	switch {
	case n == SPR_VR, n == SPR_UPR, n == SPR_CPUCFGR:
		// Read-mostly identification registers: writes are silently
		// truncated (GLOSSARY).
		return nil
	case n == SPR_SR:
		// Visible to the cache/MMU/PIC on the next fetch, not
		// mid-instruction (spec.md §4.6).
		cpu.SR = value
		cpu.Mode = ModeSupervisor
		if value&SR_SM == 0 {
			cpu.Mode = ModeUser
		}
		sim.applySRSideEffects()
		return nil
	case n == SPR_EPCR, n == SPR_EEAR, n == SPR_ESR:
		cpu.SPR[n] = value
		return nil
	case n == SPR_PICMR:
		sim.PIC.SetMask(value)
		return nil
	case n == SPR_PICSR:
		sim.PIC.ClearStatus(value)
		return nil
	case n == SPR_TTMR:
		// Writing the reload value restarts the timer (spec.md §4.6):
		// the period packed into TTMR's low bits is reloaded into the
		// live count register immediately, not just recorded.
		cpu.SPR[SPR_TTMR] = value
		cpu.SPR[SPR_TTCR] = value & TTMR_PERIOD
		return nil
	case n == SPR_TTCR:
		// Writing the count directly is forbidden (spec.md §4.6); the
		// only way to change it is through SPR_TTMR's reload path.
		if sim.Tracer != nil {
			sim.Tracer.Printf("warning: ignored direct write to SPR_TTCR (use SPR_TTMR to reload)\n")
		}
		return nil
	case n == SPR_PMR:
		sim.pm.write(value)
		return nil
	case n >= SPR_PCCR_BASE && n < SPR_PCCR_BASE+NumPCCRs:
		// Read-only counters; writes ignored.
		return nil
	case n >= SPR_PCMR_BASE && n < SPR_PCMR_BASE+NumPCCRs:
		sim.pcu.mode[n-SPR_PCMR_BASE] = value
		return nil
	case n >= SPR_DMMU_MATCH_BASE && n < SPR_DMMU_TRANSLATE_BASE:
		sim.writeMMUMatch(sim.DMMU, n-SPR_DMMU_MATCH_BASE, value)
		return nil
	case n >= SPR_DMMU_TRANSLATE_BASE && n < SPR_DMMU_TRANSLATE_BASE+0x80:
		sim.writeMMUTranslate(sim.DMMU, n-SPR_DMMU_TRANSLATE_BASE, value)
		return nil
	case n >= SPR_IMMU_MATCH_BASE && n < SPR_IMMU_TRANSLATE_BASE:
		sim.writeMMUMatch(sim.IMMU, n-SPR_IMMU_MATCH_BASE, value)
		return nil
	case n >= SPR_IMMU_TRANSLATE_BASE && n < SPR_IMMU_TRANSLATE_BASE+0x80:
		sim.writeMMUTranslate(sim.IMMU, n-SPR_IMMU_TRANSLATE_BASE, value)
		return nil
	default:
		cpu.SPR[n] = value
		return nil
	}
}

// applySRSideEffects propagates the cache/MMU enable bits just
// written into SR onto the Enabled flags the components actually
// check. It does not flush either TLB: entries carry separate
// supervisor and user permission bits, so they stay valid across a
// supervisor/user transition.
func (sim *Simulator) applySRSideEffects() {
	cpu := sim.CPU
	if sim.ICache != nil {
		sim.ICache.Enabled = cpu.icacheEnabled()
	}
	if sim.DCache != nil {
		sim.DCache.Enabled = cpu.dcacheEnabled()
	}
	if sim.IMMU != nil {
		sim.IMMU.Enabled = cpu.immuEnabled()
	}
	if sim.DMMU != nil {
		sim.DMMU.Enabled = cpu.dmmuEnabled()
	}
}

// MMU match/translate register layout (spec.md is silent on the exact
// bit packing; DESIGN.md records this as an Open Question resolved by
// picking a compact encoding rather than the real architecture's,
// since nothing in the spec depends on the literal bit positions):
//
//	match:     bit0 = valid, bits[31:PageShift] = VPN
//	translate: bits[31:PageShift] = PPN
//	           bit0 SupervisorRead, bit1 SupervisorWrite, bit2 SupervisorExec
//	           bit3 UserRead,       bit4 UserWrite,       bit5 UserExec
//	           bit6 Dirty
//
// The SPR index within each 0x80-register block is set*NWays+way.

func mmuIndexToSetWay(m *MMU, idx uint16) (set, way int) {
	if m.NWays == 0 {
		return 0, 0
	}
	return int(idx) / m.NWays, int(idx) % m.NWays
}

func (sim *Simulator) readMMUMatch(m *MMU, idx uint16) uint32 {
	set, way := mmuIndexToSetWay(m, idx)
	e := m.Direct(set, way)
	v := e.VPN << m.PageShift
	if e.Valid {
		v |= 1
	}
	return v
}

func (sim *Simulator) writeMMUMatch(m *MMU, idx uint16, value uint32) {
	set, way := mmuIndexToSetWay(m, idx)
	e := m.Direct(set, way)
	e.VPN = value >> m.PageShift
	e.Valid = value&1 != 0
	m.SetDirect(set, way, e)
}

func (sim *Simulator) readMMUTranslate(m *MMU, idx uint16) uint32 {
	set, way := mmuIndexToSetWay(m, idx)
	e := m.Direct(set, way)
	v := e.PPN << m.PageShift
	if e.SupervisorRead {
		v |= 1 << 0
	}
	if e.SupervisorWrite {
		v |= 1 << 1
	}
	if e.SupervisorExec {
		v |= 1 << 2
	}
	if e.UserRead {
		v |= 1 << 3
	}
	if e.UserWrite {
		v |= 1 << 4
	}
	if e.UserExec {
		v |= 1 << 5
	}
	if e.Dirty {
		v |= 1 << 6
	}
	return v
}

func (sim *Simulator) writeMMUTranslate(m *MMU, idx uint16, value uint32) {
	set, way := mmuIndexToSetWay(m, idx)
	e := m.Direct(set, way)
	e.PPN = value >> m.PageShift
	e.SupervisorRead = value&(1<<0) != 0
	e.SupervisorWrite = value&(1<<1) != 0
	e.SupervisorExec = value&(1<<2) != 0
	e.UserRead = value&(1<<3) != 0
	e.UserWrite = value&(1<<4) != 0
	e.UserExec = value&(1<<5) != 0
	e.Dirty = value&(1<<6) != 0
	m.SetDirect(set, way, e)
}

// TickTimerAdvance decrements SPR_TTCR by one while the timer's mode
// is enabled. On a call that finds SPR_TTCR already at zero it raises
// the tick-timer exception if TTMR_IE is set (mode bits per spec.md
// §4.6's tick-timer family) and then reloads, stops or wraps the
// counter depending on TTMR_MODE, mirroring the original
// implementation's restart/one-shot/continue behavior.
func (sim *Simulator) TickTimerAdvance() {
	ttmr := sim.CPU.SPR[SPR_TTMR]
	mode := (ttmr & TTMR_MODE) >> 30
	if mode == 0 {
		return // disabled
	}
	ttcr := sim.CPU.SPR[SPR_TTCR]
	if ttcr == 0 {
		if ttmr&TTMR_IE != 0 {
			sim.pendingExc = newExc(ExcTickTimer, 0)
		}
		switch mode {
		case 1: // restart
			sim.CPU.SPR[SPR_TTCR] = ttmr & TTMR_PERIOD
		case 2: // stop at zero
			sim.CPU.SPR[SPR_TTMR] &^= TTMR_MODE
		case 3: // continue (wrap)
			sim.CPU.SPR[SPR_TTCR] = 0xFFFFFFFF
		}
		return
	}
	sim.CPU.SPR[SPR_TTCR] = ttcr - 1
}
