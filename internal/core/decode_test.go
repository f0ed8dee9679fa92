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

func TestDecodeRegImm(t *testing.T) {
	tests := []struct {
		name  string
		word  uint32
		op    Op
		rd    uint8
		ra    uint8
		imm16 int32
	}{
		{"l.addi r3, r4, 100", encodeRegImm(0x23, 3, 4, 100), OpAddi, 3, 4, 100},
		{"l.addi r1, r2, -1", encodeRegImm(0x23, 1, 2, 0xFFFF), OpAddi, 1, 2, -1},
		{"l.lwz r5, 8(r6)", encodeRegImm(0x1a, 5, 6, 8), OpLwz, 5, 6, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insn := Decode(tt.word)
			if insn.Op != tt.op {
				t.Fatalf("Op = %v, want %v", insn.Op, tt.op)
			}
			if insn.Format != FormatRegImm {
				t.Errorf("Format = %v, want FormatRegImm", insn.Format)
			}
			if insn.RD != tt.rd {
				t.Errorf("RD = %d, want %d", insn.RD, tt.rd)
			}
			if insn.RA != tt.ra {
				t.Errorf("RA = %d, want %d", insn.RA, tt.ra)
			}
			if insn.Imm16 != tt.imm16 {
				t.Errorf("Imm16 = %d, want %d", insn.Imm16, tt.imm16)
			}
		})
	}
}

func TestDecodeLogicalImmediateIsUnsigned(t *testing.T) {
	word := encodeRegImm(0x24, 1, 2, 0xFFFF) // l.andi r1, r2, 0xffff
	insn := Decode(word)
	if insn.Op != OpAndi {
		t.Fatalf("Op = %v, want OpAndi", insn.Op)
	}
	if insn.UImm16 != 0xFFFF {
		t.Errorf("UImm16 = 0x%x, want 0xffff (zero-extended, not sign-extended)", insn.UImm16)
	}
}

func TestDecodeStoreFormat(t *testing.T) {
	// This simulator's store encoding (decode.go): RD holds the base
	// register, RA holds the value register.
	word := encodeRegImm(0x35, 6, 7, 4) // l.sw 4(r6), r7
	insn := Decode(word)
	if insn.Op != OpSw {
		t.Fatalf("Op = %v, want OpSw", insn.Op)
	}
	if insn.RD != 6 {
		t.Errorf("RD (base) = %d, want 6", insn.RD)
	}
	if insn.RA != 7 {
		t.Errorf("RA (value) = %d, want 7", insn.RA)
	}
	if insn.Imm16 != 4 {
		t.Errorf("Imm16 = %d, want 4", insn.Imm16)
	}
}

func TestDecodeAluGroup(t *testing.T) {
	tests := []struct {
		name string
		sub  uint8
		op   Op
	}{
		{"l.add", 0, OpAdd},
		{"l.sub", 1, OpSub},
		{"l.and", 2, OpAnd},
		{"l.or", 3, OpOr},
		{"l.xor", 4, OpXor},
		{"l.mul", 5, OpMul},
		{"l.div", 6, OpDiv},
		{"l.sll", 7, OpSll},
		{"l.srl", 8, OpSrl},
		{"l.sra", 9, OpSra},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			word := encodeAlu(tt.sub, 3, 4, 5)
			insn := Decode(word)
			if insn.Op != tt.op {
				t.Fatalf("Op = %v, want %v", insn.Op, tt.op)
			}
			if insn.Format != FormatRegReg {
				t.Errorf("Format = %v, want FormatRegReg", insn.Format)
			}
			if insn.RD != 3 || insn.RA != 4 || insn.RB != 5 {
				t.Errorf("RD/RA/RB = %d/%d/%d, want 3/4/5", insn.RD, insn.RA, insn.RB)
			}
		})
	}
}

func TestDecodeAluGroupUnknownSubopIsIllegal(t *testing.T) {
	word := encodeAlu(0xF, 1, 2, 3)
	insn := Decode(word)
	if insn.Op != OpIllegal {
		t.Errorf("Op = %v, want OpIllegal for unassigned ALU suboppcode", insn.Op)
	}
}

func TestDecodeCompareImmediate(t *testing.T) {
	word := uint32(0x2f)<<26 | uint32(1)<<21 | uint32(2)<<16 | uint32(5) // sub=1 (RA field holds compare operand)
	insn := Decode(word)
	if insn.Op != OpSfnei {
		t.Fatalf("Op = %v, want OpSfnei", insn.Op)
	}
	if insn.RA != 2 {
		t.Errorf("RA = %d, want 2", insn.RA)
	}
	if insn.Imm16 != 5 {
		t.Errorf("Imm16 = %d, want 5", insn.Imm16)
	}
}

func TestDecodeCompareRegister(t *testing.T) {
	word := uint32(0x39)<<26 | uint32(2)<<21 | uint32(3)<<16 | uint32(4)<<11 // sub=2 -> OpSfgts
	insn := Decode(word)
	if insn.Op != OpSfgts {
		t.Fatalf("Op = %v, want OpSfgts", insn.Op)
	}
	if insn.RA != 3 || insn.RB != 4 {
		t.Errorf("RA/RB = %d/%d, want 3/4", insn.RA, insn.RB)
	}
}

func TestDecodeJumpFormats(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint8
		op     Op
		imm26  int32
	}{
		{"l.j forward", 0x00, OpJ, 100},
		{"l.jal forward", 0x01, OpJal, 200},
		{"l.bnf negative", 0x03, OpBnf, -5},
		{"l.bf negative", 0x04, OpBf, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insn := Decode(encodeJump(tt.opcode, tt.imm26))
			if insn.Op != tt.op {
				t.Fatalf("Op = %v, want %v", insn.Op, tt.op)
			}
			if insn.Format != FormatJump {
				t.Errorf("Format = %v, want FormatJump", insn.Format)
			}
			if insn.Imm26 != tt.imm26 {
				t.Errorf("Imm26 = %d, want %d", insn.Imm26, tt.imm26)
			}
		})
	}
}

func TestDecodeSpecialGroup(t *testing.T) {
	t.Run("l.sys", func(t *testing.T) {
		word := uint32(0x08)<<26 | uint32(0)<<24 | 0x2A
		insn := Decode(word)
		if insn.Op != OpSys {
			t.Fatalf("Op = %v, want OpSys", insn.Op)
		}
		if insn.UImm16 != 0x2A {
			t.Errorf("UImm16 = 0x%x, want 0x2a", insn.UImm16)
		}
	})
	t.Run("l.trap", func(t *testing.T) {
		word := uint32(0x08)<<26 | uint32(1)<<24 | 0x05
		insn := Decode(word)
		if insn.Op != OpTrap {
			t.Fatalf("Op = %v, want OpTrap", insn.Op)
		}
	})
	t.Run("l.rfe", func(t *testing.T) {
		word := uint32(0x08)<<26 | uint32(2)<<24
		insn := Decode(word)
		if insn.Op != OpRfe {
			t.Fatalf("Op = %v, want OpRfe", insn.Op)
		}
	})
	t.Run("unassigned special subop is illegal", func(t *testing.T) {
		word := uint32(0x08)<<26 | uint32(3)<<24
		insn := Decode(word)
		if insn.Op != OpIllegal {
			t.Errorf("Op = %v, want OpIllegal", insn.Op)
		}
	})
	t.Run("l.jr", func(t *testing.T) {
		word := uint32(0x11)<<26 | uint32(7)<<16
		insn := Decode(word)
		if insn.Op != OpJr || insn.RA != 7 {
			t.Errorf("Op/RA = %v/%d, want OpJr/7", insn.Op, insn.RA)
		}
	})
}

func TestDecodeUnassignedOpcodeIsIllegal(t *testing.T) {
	// 0x3f is not in primaryTable and not one of the special-cased
	// opcodes.
	insn := Decode(uint32(0x3f) << 26)
	if insn.Op != OpIllegal {
		t.Errorf("Op = %v, want OpIllegal", insn.Op)
	}
}

func TestMnemonicCoversEveryOpExceptIllegal(t *testing.T) {
	for op := OpJ; op <= OpSfgeu; op++ {
		if got := op.Mnemonic(); got == "illegal" {
			t.Errorf("Op(%d).Mnemonic() = %q, want a real mnemonic", int(op), got)
		}
	}
	if OpIllegal.Mnemonic() != "illegal" {
		t.Errorf("OpIllegal.Mnemonic() = %q, want %q", OpIllegal.Mnemonic(), "illegal")
	}
}
