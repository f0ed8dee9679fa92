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

// SPR numbers, grouped the way the architecture groups them: a
// handful of low, ungrouped system registers, then one block per
// subsystem at the fixed bases below (0x800 apart for the MMUs, 0x400
// apart from the PIC on). spec.md §4.6 names the families that carry
// side effects; everything else is plain storage.
const (
	SPR_VR      = 0x0000 // version register, read-mostly
	SPR_UPR     = 0x0001 // unit-present register, read-mostly
	SPR_CPUCFGR = 0x0002 // CPU config register, read-mostly
	SPR_SR      = 0x0011 // supervisor register
	SPR_EPCR    = 0x0012 // shadow PC on exception entry
	SPR_EEAR    = 0x0013 // shadow effective address on exception entry
	SPR_ESR     = 0x0014 // shadow SR on exception entry

	SPR_DMMU_MATCH_BASE     = 0x1000
	SPR_DMMU_TRANSLATE_BASE = 0x1080
	SPR_IMMU_MATCH_BASE     = 0x1800
	SPR_IMMU_TRANSLATE_BASE = 0x1880

	SPR_PICMR = 0x2800 // interrupt mask register
	SPR_PICSR = 0x2801 // interrupt status register, write-1-to-clear

	SPR_TTMR = 0x2C00 // tick timer mode/reload register
	SPR_TTCR = 0x2C01 // tick timer count register (write via SPR_TTMR only; see spr.go)

	SPR_PMR = 0x3000 // power management register

	SPR_PCCR_BASE = 0x3400 // performance counters, read-only, 8 of them
	SPR_PCMR_BASE = 0x3440 // performance counter mode registers, one per counter
	NumPCCRs      = 8
)

// UPR (unit-present register) bits, read-only, reported by SPR_UPR.
const (
	UPR_UP   = 1 << 0 // UPR itself present
	UPR_DCP  = 1 << 1 // data cache present
	UPR_ICP  = 1 << 2 // instruction cache present
	UPR_DMP  = 1 << 3 // data MMU present
	UPR_IMP  = 1 << 4 // instruction MMU present
	UPR_PICP = 1 << 5 // PIC present
	UPR_TTP  = 1 << 6 // tick timer present
	UPR_PMP  = 1 << 8 // power management present
	UPR_PCUP = 1 << 9 // performance counters present
)

// PCMR (performance counter mode register) bits (original_source/pcu/pcu.c).
const (
	PCMR_CP   = 1 << 0 // counter present
	PCMR_CISM = 1 << 1 // count in supervisor mode
	PCMR_CIUM = 1 << 2 // count in user mode
)

// Performance-counter event bits passed to pcu_count_event (spec.md
// supplemented feature), matching original_source/pcu/pcu.c's event
// numbering for the events this simulator actually reports.
const (
	PCU_EventFetch     = 1 << 3
	PCU_EventLSU       = 1 << 4
	PCU_EventMMUMiss   = 1 << 5
	PCU_EventCacheMiss = 1 << 6
)

// Tick timer mode bits packed into the high byte of SPR_TTMR; the low
// 28 bits are the reload period (spec.md §4.6: "writing the reload
// value restarts the timer").
const (
	TTMR_PERIOD = 0x0FFFFFFF // reload/period field
	TTMR_IE     = 1 << 29    // interrupt enable
	TTMR_MODE   = 3 << 30    // 0=disabled,1=restart,2=stop-at-zero,3=continue
)
