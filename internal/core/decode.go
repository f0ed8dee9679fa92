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

// Op is the decoded opcode index (spec.md §4.7): purely an index into
// the static operand-shape table below. An invalid encoding decodes
// to OpIllegal; whether that is ever an architectural fault is the
// executor's business, not the decoder's (an illegal word sitting in
// a never-taken branch must not trap, spec.md §4.7).
type Op int

const (
	OpIllegal Op = iota
	OpJ
	OpJal
	OpBnf
	OpBf
	OpNop
	OpMovhi
	OpSys
	OpTrap
	OpRfe
	OpJr
	OpJalr
	OpLwz
	OpLws
	OpLbz
	OpLbs
	OpLhz
	OpLhs
	OpAddi
	OpAndi
	OpOri
	OpXori
	OpSw
	OpSb
	OpSh

	// ALU register-register group
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpMul
	OpDiv
	OpSll
	OpSrl
	OpSra

	// Compare, immediate and register-register variants set Flag the
	// same way; the executor dispatches both through one evaluator.
	OpSfeqi
	OpSfnei
	OpSfgtsi
	OpSfgesi
	OpSfltsi
	OpSflesi
	OpSfgtui
	OpSfgeui
	OpSfeq
	OpSfne
	OpSfgts
	OpSfges
	OpSflts
	OpSfles
	OpSfgtu
	OpSfgeu
)

// Format describes which of the three operand encodings spec.md §4.7
// requires the decoder to handle: two-register-plus-16-bit-immediate
// (arithmetic-immediate, loads, stores), three-register
// (arithmetic-register, compares), and 26-bit PC-relative (jumps,
// branches). FormatSpecial covers the zero/one-operand control
// instructions (nop, sys, trap, rfe, jr, jalr).
type Format int

const (
	FormatRegImm Format = iota
	FormatRegReg
	FormatJump
	FormatSpecial
)

// Instruction is the decoder's output: an opcode index plus the
// operand descriptors for that shape (spec.md §4.7). Decoding is
// purely combinational; it has no side effects and no state.
type Instruction struct {
	Raw    uint32
	Op     Op
	Format Format

	RD, RA, RB uint8
	Imm16      int32  // sign-extended 16-bit immediate
	UImm16     uint32 // zero-extended 16-bit immediate (andi/ori/xori/movhi)
	Imm26      int32  // sign-extended, word-granularity jump/branch target delta
}

type opInfo struct {
	op     Op
	format Format
}

// primaryTable is the static, compile-time-built decode table indexed
// by the primary 6-bit opcode (spec.md §9: prefer a code-generated or
// compile-time table over a hand-coded switch).
var primaryTable = map[uint8]opInfo{
	0x00: {OpJ, FormatJump},
	0x01: {OpJal, FormatJump},
	0x03: {OpBnf, FormatJump},
	0x04: {OpBf, FormatJump},
	0x05: {OpNop, FormatSpecial},
	0x06: {OpMovhi, FormatRegImm},
	0x11: {OpJr, FormatSpecial},
	0x12: {OpJalr, FormatSpecial},
	0x1a: {OpLwz, FormatRegImm},
	0x1b: {OpLws, FormatRegImm},
	0x1c: {OpLbz, FormatRegImm},
	0x1d: {OpLbs, FormatRegImm},
	0x1e: {OpLhz, FormatRegImm},
	0x1f: {OpLhs, FormatRegImm},
	0x23: {OpAddi, FormatRegImm},
	0x24: {OpAndi, FormatRegImm},
	0x25: {OpOri, FormatRegImm},
	0x26: {OpXori, FormatRegImm},
	0x35: {OpSw, FormatRegImm},
	0x36: {OpSb, FormatRegImm},
	0x37: {OpSh, FormatRegImm},
}

// aluSubTable is opcode 0x38's three-register ALU group, keyed by the
// 4-bit sub-opcode in bits [3:0].
var aluSubTable = map[uint8]Op{
	0: OpAdd, 1: OpSub, 2: OpAnd, 3: OpOr, 4: OpXor, 5: OpMul, 6: OpDiv, 7: OpSll, 8: OpSrl, 9: OpSra,
}

// cmpSubTableImm serves opcode 0x2f (compare-immediate) and
// cmpSubTableReg serves 0x39 (compare-register), both keyed by the
// sub-opcode field in bits [25:21] (values 0-7 are defined). The two
// groups map to distinct Op constants, so they never collide in Op
// space.
var cmpSubTableImm = map[uint8]Op{
	0: OpSfeqi, 1: OpSfnei, 2: OpSfgtsi, 3: OpSfgesi, 4: OpSfltsi, 5: OpSflesi, 6: OpSfgtui, 7: OpSfgeui,
}
var cmpSubTableReg = map[uint8]Op{
	0: OpSfeq, 1: OpSfne, 2: OpSfgts, 3: OpSfges, 4: OpSflts, 5: OpSfles, 6: OpSfgtu, 7: OpSfgeu,
}

func bits(w uint32, hi, lo uint) uint32 {
	return (w >> lo) & ((1 << (hi - lo + 1)) - 1)
}

func sext16(v uint32) int32 {
	x := int32(int16(v))
	return x
}

func sext26(v uint32) int32 {
	if v&(1<<25) != 0 {
		return int32(v | 0xFC000000)
	}
	return int32(v)
}

// Decode converts a 32-bit instruction word into an Instruction. It
// never returns an error: an unrecognised encoding decodes to
// OpIllegal, and it is the executor's job to turn that into an
// exception, only at the moment the instruction would actually run.
func Decode(word uint32) Instruction {
	opcode := uint8(bits(word, 31, 26))
	insn := Instruction{Raw: word}

	switch opcode {
	case 0x08: // special group: sys / trap / rfe
		insn.Format = FormatSpecial
		sub := bits(word, 25, 24)
		switch sub {
		case 0:
			insn.Op = OpSys
			insn.UImm16 = bits(word, 15, 0)
		case 1:
			insn.Op = OpTrap
			insn.UImm16 = bits(word, 15, 0)
		case 2:
			insn.Op = OpRfe
		default:
			insn.Op = OpIllegal
		}
		return insn

	case 0x2f: // compare-immediate group
		insn.Format = FormatRegImm
		sub := uint8(bits(word, 25, 21))
		op, ok := cmpSubTableImm[sub]
		if !ok {
			insn.Op = OpIllegal
			return insn
		}
		insn.Op = op
		insn.RA = uint8(bits(word, 20, 16))
		insn.Imm16 = sext16(bits(word, 15, 0))
		return insn

	case 0x38: // register-register ALU group
		insn.Format = FormatRegReg
		sub := uint8(bits(word, 3, 0))
		op, ok := aluSubTable[sub]
		if !ok {
			insn.Op = OpIllegal
			return insn
		}
		insn.Op = op
		insn.RD = uint8(bits(word, 25, 21))
		insn.RA = uint8(bits(word, 20, 16))
		insn.RB = uint8(bits(word, 15, 11))
		return insn

	case 0x39: // compare register-register group
		insn.Format = FormatRegReg
		sub := uint8(bits(word, 25, 21))
		op, ok := cmpSubTableReg[sub]
		if !ok {
			insn.Op = OpIllegal
			return insn
		}
		insn.Op = op
		insn.RA = uint8(bits(word, 20, 16))
		insn.RB = uint8(bits(word, 15, 11))
		return insn
	}

	info, ok := primaryTable[opcode]
	if !ok {
		insn.Op = OpIllegal
		return insn
	}
	insn.Op = info.op
	insn.Format = info.format

	switch info.format {
	case FormatJump:
		insn.Imm26 = sext26(bits(word, 25, 0))
	case FormatSpecial:
		switch info.op {
		case OpJr, OpJalr:
			insn.RA = uint8(bits(word, 20, 16))
		case OpNop:
			insn.UImm16 = bits(word, 15, 0)
		}
	case FormatRegImm:
		insn.RD = uint8(bits(word, 25, 21))
		insn.RA = uint8(bits(word, 20, 16))
		switch info.op {
		case OpAndi, OpOri, OpXori:
			insn.UImm16 = bits(word, 15, 0)
		case OpMovhi:
			insn.UImm16 = bits(word, 15, 0)
		case OpSw, OpSb, OpSh:
			// Store format reuses RegImm shape: RD holds the base
			// register, RA holds the value register (see DESIGN.md
			// for why stores don't split the
			// immediate across two fields the way the real
			// architecture's encoding does).
			insn.Imm16 = sext16(bits(word, 15, 0))
		default:
			insn.Imm16 = sext16(bits(word, 15, 0))
		}
	}
	return insn
}

// Mnemonic returns the textual name of an Op, used by the tracer.
func (o Op) Mnemonic() string {
	switch o {
	case OpJ:
		return "l.j"
	case OpJal:
		return "l.jal"
	case OpBnf:
		return "l.bnf"
	case OpBf:
		return "l.bf"
	case OpNop:
		return "l.nop"
	case OpMovhi:
		return "l.movhi"
	case OpSys:
		return "l.sys"
	case OpTrap:
		return "l.trap"
	case OpRfe:
		return "l.rfe"
	case OpJr:
		return "l.jr"
	case OpJalr:
		return "l.jalr"
	case OpLwz:
		return "l.lwz"
	case OpLws:
		return "l.lws"
	case OpLbz:
		return "l.lbz"
	case OpLbs:
		return "l.lbs"
	case OpLhz:
		return "l.lhz"
	case OpLhs:
		return "l.lhs"
	case OpAddi:
		return "l.addi"
	case OpAndi:
		return "l.andi"
	case OpOri:
		return "l.ori"
	case OpXori:
		return "l.xori"
	case OpSw:
		return "l.sw"
	case OpSb:
		return "l.sb"
	case OpSh:
		return "l.sh"
	case OpAdd:
		return "l.add"
	case OpSub:
		return "l.sub"
	case OpAnd:
		return "l.and"
	case OpOr:
		return "l.or"
	case OpXor:
		return "l.xor"
	case OpMul:
		return "l.mul"
	case OpDiv:
		return "l.div"
	case OpSll:
		return "l.sll"
	case OpSrl:
		return "l.srl"
	case OpSra:
		return "l.sra"
	case OpSfeqi:
		return "l.sfeqi"
	case OpSfnei:
		return "l.sfnei"
	case OpSfgtsi:
		return "l.sfgtsi"
	case OpSfgesi:
		return "l.sfgesi"
	case OpSfltsi:
		return "l.sfltsi"
	case OpSflesi:
		return "l.sflesi"
	case OpSfgtui:
		return "l.sfgtui"
	case OpSfgeui:
		return "l.sfgeui"
	case OpSfeq:
		return "l.sfeq"
	case OpSfne:
		return "l.sfne"
	case OpSfgts:
		return "l.sfgts"
	case OpSfges:
		return "l.sfges"
	case OpSflts:
		return "l.sflts"
	case OpSfles:
		return "l.sfles"
	case OpSfgtu:
		return "l.sfgtu"
	case OpSfgeu:
		return "l.sfgeu"
	default:
		return "illegal"
	}
}
