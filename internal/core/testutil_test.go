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

// newTestSim builds a minimal Simulator wired to a single flat RAM
// region covering all of physical memory, caches and MMUs disabled,
// for tests that exercise the executor and SPR file without needing a
// full cmd/or1ksim-style config.
func newTestSim() *Simulator {
	as := NewAddressSpace(nil)
	as.Register(NewRAMRegion("ram", 0, 0x00100000, 0, 0))

	icache := NewCache(16, 4, 2, 1, 10, false)
	dcache := NewCache(16, 4, 2, 1, 10, true)
	immu := NewInstructionMMU(4096, 4, 2, 1)
	dmmu := NewDataMMU(4096, 4, 2, 1)
	pic := NewInterruptController(nil)
	sched := NewScheduler(nil)

	sim := NewSimulator(as, icache, dcache, immu, dmmu, pic, sched, nil, 50_000_000)
	return sim
}

// encodeRegImm builds a FormatRegImm-shaped instruction word: opcode in
// bits[31:26], RD in bits[25:21], RA in bits[20:16], imm16 in bits[15:0].
func encodeRegImm(opcode uint8, rd, ra uint8, imm16 uint16) uint32 {
	return uint32(opcode)<<26 | uint32(rd)<<21 | uint32(ra)<<16 | uint32(imm16)
}

// encodeRegReg builds a FormatRegReg-shaped l.alu instruction word
// (opcode 0x38), RD/RA/RB plus the 4-bit sub-opcode in bits[3:0].
func encodeAlu(sub uint8, rd, ra, rb uint8) uint32 {
	return uint32(0x38)<<26 | uint32(rd)<<21 | uint32(ra)<<16 | uint32(rb)<<11 | uint32(sub)
}

func encodeJump(opcode uint8, imm26 int32) uint32 {
	return uint32(opcode)<<26 | (uint32(imm26) & 0x03FFFFFF)
}
