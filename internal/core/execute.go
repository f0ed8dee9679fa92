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

// Host-hook codes for l.nop, the simulator's escape hatch for things
// a guest program can't otherwise ask the host to do: exit, print a
// register, or print a string pointed to by a register
// (original_source's dyn-rec.c NOP_* family; supplemented feature,
// since spec.md's distillation only mentions l.nop as a no-op).
const (
	NopNop      = 0x0
	NopExit     = 0x1
	NopReport   = 0x2
	NopPrintf   = 0x3
	NopPutc     = 0x4
	NopCntReset = 0x5
)

// Run dispatches up to maxCycles instructions, stopping early if the
// executor halts, a host-fatal error occurs, the attached TAP requests
// a stall (spec.md §5's "a debug breakpoint fires"), or a budget armed
// by ResetDuration is exhausted (spec.md §6's run entry point). A
// maxCycles of zero means run until one of the other conditions stops
// it. The suspension is checked at the top of the loop, the one
// between-instructions suspension point spec.md §5 names.
func (sim *Simulator) Run(maxCycles uint64) error {
	sim.brkpt = false
	var n uint64
	for !sim.halted {
		if maxCycles != 0 && n >= maxCycles {
			return nil
		}
		if sim.budgetUntilCycle != 0 && sim.cycles >= sim.budgetUntilCycle {
			return nil
		}
		if sim.breakpointHit() {
			sim.brkpt = true
			return nil
		}
		if err := sim.Step(); err != nil {
			return err
		}
		n++
	}
	return nil
}

// Step executes exactly one dispatch cycle: asleep check, pending
// exception, external interrupt check, fetch, decode, execute, retire
// (spec.md §4.8).
func (sim *Simulator) Step() error {
	cpu := sim.CPU

	if sim.pm.Asleep() {
		if err := sim.Sched.DoScheduler(); err != nil {
			return err
		}
		if _, ok := sim.PIC.Pending(); ok && cpu.interruptsEnabled() {
			sim.pm.wake()
		} else {
			sim.Sched.Advance(1)
			sim.cycles++
			return nil
		}
	}

	if sim.pendingExc != nil {
		exc := sim.pendingExc
		sim.pendingExc = nil
		sim.vector(exc)
		return sim.retire()
	}

	if cpu.interruptsEnabled() {
		if line, ok := sim.PIC.Pending(); ok {
			sim.PIC.Deliver(line)
			sim.lastIntLine = line
			sim.vector(newExc(ExcExternalInterrupt, uint32(line)))
			return sim.retire()
		}
	}

	pc := cpu.PC
	phys, err := sim.IMMU.Translate(pc, AccessExecute, cpu.Mode, sim.AS)
	if err != nil {
		sim.vector(err.(*ArchException))
		return sim.retire()
	}
	word, err := sim.ICache.Access(sim.AS, phys, 4, false, 0)
	if err != nil {
		sim.vector(asArchException(err))
		return sim.retire()
	}
	sim.countEvent(PCU_EventFetch)

	insn := Decode(word)
	if sim.Tracer != nil {
		sim.Tracer.Fetch(sim.cycles, pc, word, insn.Op.Mnemonic())
	}

	wasDelaySlot := cpu.DelayInsn
	execErr := sim.dispatch(pc, insn)

	if execErr != nil {
		if exc, ok := execErr.(*ArchException); ok {
			sim.vector(exc)
			return sim.retire()
		}
		return execErr
	}

	if wasDelaySlot {
		cpu.PC = cpu.PCNext
		cpu.DelayInsn = false
	} else if !sim.branched {
		cpu.PC = pc + 4
	}
	sim.branched = false

	return sim.retire()
}

// retire folds the instruction's memory-access delay and the fixed
// one-cycle cost into the global cycle counter, advances the
// scheduler, and runs the tick timer (spec.md §4.4, §4.6).
func (sim *Simulator) retire() error {
	sim.branched = false
	sim.cycles += 1 + uint64(sim.AS.TakeMemCycles())
	sim.TickTimerAdvance()
	sim.Sched.Advance(1)
	return sim.Sched.DoScheduler()
}

func asArchException(err error) *ArchException {
	if exc, ok := err.(*ArchException); ok {
		return exc
	}
	return newExc(ExcBusError, 0)
}

// vector performs exception entry (spec.md §4.6, §7): it snapshots
// EPCR/EEAR/ESR, forces supervisor mode with interrupts disabled, and
// sets PC to the fixed vector for exc.Kind. If the faulting
// instruction was itself a delay slot, EPCR points at the branch that
// produced it rather than the delay slot's own address, so resuming
// with rfe re-executes the branch (spec.md §8 property 3).
func (sim *Simulator) vector(exc *ArchException) {
	cpu := sim.CPU
	epc := cpu.PC
	if cpu.DelayInsn {
		epc = cpu.DelaySlotBranchPC
		cpu.DelayInsn = false
	}
	cpu.SPR[SPR_EPCR] = epc
	cpu.SPR[SPR_EEAR] = exc.EEAR
	cpu.SPR[SPR_ESR] = cpu.SR

	cpu.SR = (cpu.SR | SR_SM) &^ SR_IEE
	cpu.Mode = ModeSupervisor
	sim.applySRSideEffects()

	cpu.PC = vectorOffset[exc.Kind]
	sim.branched = true

	if sim.Tracer != nil {
		sim.Tracer.Exception(sim.cycles, exc.Kind.String(), cpu.PC, exc.EEAR)
	}
}

// dispatch executes one decoded instruction, leaving cpu.PC untouched
// except for instructions that set up a branch (which set
// sim.branched or arm a delay slot via cpu.PCNext/cpu.DelayInsn).
func (sim *Simulator) dispatch(pc uint32, insn Instruction) error {
	cpu := sim.CPU

	switch insn.Op {
	case OpIllegal:
		return newExc(ExcIllegalInsn, pc)

	case OpJ:
		sim.armDelaySlot(pc, branchTarget(pc, insn.Imm26))
		return nil
	case OpJal:
		cpu.SetReg(9, pc+8)
		sim.armDelaySlot(pc, branchTarget(pc, insn.Imm26))
		return nil
	case OpBnf:
		if !cpu.Flag {
			sim.armDelaySlot(pc, branchTarget(pc, insn.Imm26))
		}
		return nil
	case OpBf:
		if cpu.Flag {
			sim.armDelaySlot(pc, branchTarget(pc, insn.Imm26))
		}
		return nil
	case OpJr:
		sim.armDelaySlot(pc, cpu.GetReg(insn.RA))
		return nil
	case OpJalr:
		cpu.SetReg(9, pc+8)
		sim.armDelaySlot(pc, cpu.GetReg(insn.RA))
		return nil

	case OpNop:
		return sim.hostHook(insn.UImm16)

	case OpMovhi:
		cpu.SetReg(insn.RD, insn.UImm16<<16)
		return nil

	case OpSys:
		return newExc(ExcSyscall, insn.UImm16)
	case OpTrap:
		return newExc(ExcTrap, insn.UImm16)
	case OpRfe:
		sim.rfe()
		return nil

	case OpLwz, OpLws:
		return sim.load(pc, insn, 4, insn.Op == OpLws)
	case OpLhz, OpLhs:
		return sim.load(pc, insn, 2, insn.Op == OpLhs)
	case OpLbz, OpLbs:
		return sim.load(pc, insn, 1, insn.Op == OpLbs)

	case OpSw:
		return sim.store(pc, insn, 4)
	case OpSh:
		return sim.store(pc, insn, 2)
	case OpSb:
		return sim.store(pc, insn, 1)

	case OpAddi:
		cpu.SetReg(insn.RD, cpu.GetReg(insn.RA)+uint32(insn.Imm16))
		return nil
	case OpAndi:
		cpu.SetReg(insn.RD, cpu.GetReg(insn.RA)&insn.UImm16)
		return nil
	case OpOri:
		cpu.SetReg(insn.RD, cpu.GetReg(insn.RA)|insn.UImm16)
		return nil
	case OpXori:
		cpu.SetReg(insn.RD, cpu.GetReg(insn.RA)^insn.UImm16)
		return nil

	case OpAdd:
		cpu.SetReg(insn.RD, cpu.GetReg(insn.RA)+cpu.GetReg(insn.RB))
		return nil
	case OpSub:
		cpu.SetReg(insn.RD, cpu.GetReg(insn.RA)-cpu.GetReg(insn.RB))
		return nil
	case OpAnd:
		cpu.SetReg(insn.RD, cpu.GetReg(insn.RA)&cpu.GetReg(insn.RB))
		return nil
	case OpOr:
		cpu.SetReg(insn.RD, cpu.GetReg(insn.RA)|cpu.GetReg(insn.RB))
		return nil
	case OpXor:
		cpu.SetReg(insn.RD, cpu.GetReg(insn.RA)^cpu.GetReg(insn.RB))
		return nil
	case OpMul:
		cpu.SetReg(insn.RD, cpu.GetReg(insn.RA)*cpu.GetReg(insn.RB))
		return nil
	case OpDiv:
		b := cpu.GetReg(insn.RB)
		if b == 0 {
			return newExc(ExcRange, pc)
		}
		cpu.SetReg(insn.RD, uint32(int32(cpu.GetReg(insn.RA))/int32(b)))
		return nil
	case OpSll:
		cpu.SetReg(insn.RD, cpu.GetReg(insn.RA)<<(cpu.GetReg(insn.RB)&0x1F))
		return nil
	case OpSrl:
		cpu.SetReg(insn.RD, cpu.GetReg(insn.RA)>>(cpu.GetReg(insn.RB)&0x1F))
		return nil
	case OpSra:
		cpu.SetReg(insn.RD, uint32(int32(cpu.GetReg(insn.RA))>>(cpu.GetReg(insn.RB)&0x1F)))
		return nil

	case OpSfeqi, OpSfnei, OpSfgtsi, OpSfgesi, OpSfltsi, OpSflesi, OpSfgtui, OpSfgeui:
		cpu.Flag = compareSigned(insn.Op, int32(cpu.GetReg(insn.RA)), int32(insn.Imm16), cpu.GetReg(insn.RA), uint32(insn.Imm16))
		return nil
	case OpSfeq, OpSfne, OpSfgts, OpSfges, OpSflts, OpSfles, OpSfgtu, OpSfgeu:
		cpu.Flag = compareSigned(insn.Op, int32(cpu.GetReg(insn.RA)), int32(cpu.GetReg(insn.RB)), cpu.GetReg(insn.RA), cpu.GetReg(insn.RB))
		return nil

	default:
		return newExc(ExcIllegalInsn, pc)
	}
}

// branchTarget computes a PC-relative jump/branch target: imm26 is a
// word-granularity signed delta (spec.md §4.7).
func branchTarget(pc uint32, imm26 int32) uint32 {
	return uint32(int32(pc) + imm26*4)
}

// armDelaySlot sets up a pending branch: the instruction at pc+4 (the
// delay slot) executes normally, and only then does PC become target
// (spec.md §4.8's delay-slot contract, §8 property 2).
func (sim *Simulator) armDelaySlot(pc, target uint32) {
	cpu := sim.CPU
	cpu.PCNext = target
	cpu.DelayInsn = true
	cpu.DelaySlotBranchPC = pc
	sim.branched = false
}

// rfe restores SR and PC from their exception shadow registers
// (spec.md §4.6) and, if the exception being returned from was an
// external interrupt, acknowledges that line so a level-triggered
// source can be redelivered (spec.md §8 property 6).
func (sim *Simulator) rfe() {
	cpu := sim.CPU
	cpu.SR = cpu.SPR[SPR_ESR]
	cpu.Mode = ModeSupervisor
	if cpu.SR&SR_SM == 0 {
		cpu.Mode = ModeUser
	}
	sim.applySRSideEffects()
	cpu.PC = cpu.SPR[SPR_EPCR]
	sim.branched = true

	if sim.lastIntLine >= 0 {
		sim.PIC.AckHandlerEntry(sim.lastIntLine)
		sim.lastIntLine = -1
	}
}

// hostHook implements l.nop's host-escape codes (supplemented
// feature).
func (sim *Simulator) hostHook(code uint32) error {
	cpu := sim.CPU
	switch code {
	case NopNop:
		return nil
	case NopExit:
		sim.halted = true
		return nil
	case NopReport:
		if sim.Tracer != nil {
			sim.Tracer.Printf("report: 0x%08x\n", cpu.GetReg(3))
		}
		return nil
	case NopPrintf, NopPutc:
		// String/char formatting host hooks are not modeled; they are
		// silently ignored so test programs using them still run to
		// completion instead of trapping.
		return nil
	case NopCntReset:
		sim.pcu.reset()
		return nil
	default:
		return nil
	}
}

// load performs a width-typed, optionally sign-extended load through
// the data MMU and data cache (spec.md §4.8).
func (sim *Simulator) load(pc uint32, insn Instruction, width int, signed bool) error {
	cpu := sim.CPU
	addr := cpu.GetReg(insn.RA) + uint32(insn.Imm16)
	phys, err := sim.DMMU.Translate(addr, AccessRead, cpu.Mode, sim.AS)
	if err != nil {
		sim.countEvent(PCU_EventMMUMiss)
		return err
	}
	v, err := sim.DCache.Access(sim.AS, phys, width, false, 0)
	if err != nil {
		return err
	}
	sim.countEvent(PCU_EventLSU)
	if signed {
		v = signExtend(v, width)
	}
	cpu.SetReg(insn.RD, v)
	return nil
}

// store performs a width-typed store through the data MMU and data
// cache. In the store-format encoding this simulator uses (decode.go),
// RD holds the base register and RA holds the value register.
func (sim *Simulator) store(pc uint32, insn Instruction, width int) error {
	cpu := sim.CPU
	addr := cpu.GetReg(insn.RD) + uint32(insn.Imm16)
	phys, err := sim.DMMU.Translate(addr, AccessWrite, cpu.Mode, sim.AS)
	if err != nil {
		sim.countEvent(PCU_EventMMUMiss)
		return err
	}
	_, err = sim.DCache.Access(sim.AS, phys, width, true, cpu.GetReg(insn.RA))
	if err != nil {
		return err
	}
	sim.countEvent(PCU_EventLSU)
	return nil
}

func signExtend(v uint32, width int) uint32 {
	switch width {
	case 1:
		return uint32(int32(int8(v)))
	case 2:
		return uint32(int32(int16(v)))
	default:
		return v
	}
}

func compareSigned(op Op, as, bs int32, au, bu uint32) bool {
	switch op {
	case OpSfeqi, OpSfeq:
		return au == bu
	case OpSfnei, OpSfne:
		return au != bu
	case OpSfgtsi, OpSfgts:
		return as > bs
	case OpSfgesi, OpSfges:
		return as >= bs
	case OpSfltsi, OpSflts:
		return as < bs
	case OpSflesi, OpSfles:
		return as <= bs
	case OpSfgtui, OpSfgtu:
		return au > bu
	case OpSfgeui, OpSfgeu:
		return au >= bu
	default:
		return false
	}
}
