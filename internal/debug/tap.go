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

package debug

// MemoryAccess is the Wishbone-side target of a DEBUG module access:
// the simulator's address space, addressed directly (no cache, no
// MMU translation), matching original_source/debug/jtag.c's
// eval_direct8/set_direct8.
type MemoryAccess interface {
	Read8(addr uint32) (uint32, error)
	Write8(addr uint32, v uint32) error
}

// SPRAccess is the CPU-side target of a DEBUG module access: mfspr/
// mtspr, used when the selected module is ModuleCPU0 or ModuleCPU1.
type SPRAccess interface {
	ReadSPR(n uint16) (uint32, error)
	WriteSPR(n uint16, v uint32) error
}

// AccessType is the Wishbone access width a WriteCommand declares.
type AccessType int

const (
	Access8 AccessType = iota
	Access16
	Access32
)

func (a AccessType) byteWidth() uint32 {
	switch a {
	case Access16:
		return 2
	case Access32:
		return 4
	default:
		return 1
	}
}

// Control bits for WriteControl/ReadControl (spec.md §4.9's debug
// control surface: reset and stall the CPU from outside the normal
// fetch loop).
const (
	ControlReset = 1 << 0
	ControlStall = 1 << 1
)

// TAP is the JTAG Test Access Port plus the DEBUG data register state
// machine layered on top of it (component I). It holds exactly the
// state a real debug unit must remember between DR shifts: the
// selected module and the fields of the most recent WRITE_COMMAND.
type TAP struct {
	mem MemoryAccess
	spr SPRAccess

	ir uint8

	mod ModuleID

	// Fields remembered from the last successful WriteCommand, reused
	// by GoCommand and returned verbatim by ReadCommand.
	cmdAddr   uint32
	cmdSize   uint32
	cmdWrite  bool
	cmdAccess AccessType
	haveCmd   bool

	control uint32

	// resetRequested/stallRequested latch the most recent
	// WriteControl so the embedding host can observe them without
	// decoding raw bits.
	resetRequested bool
	stallRequested bool
}

// NewTAP constructs a TAP wired to the simulator's memory and SPR
// access surfaces.
func NewTAP(mem MemoryAccess, spr SPRAccess) *TAP {
	return &TAP{mem: mem, spr: spr}
}

// ShiftIR loads the instruction register. Only one IR value is
// architecturally meaningful here (select the DEBUG data register for
// subsequent DR shifts); anything else is recorded but otherwise
// inert, matching a TAP with a single real data register.
func (t *TAP) ShiftIR(ir uint8) {
	t.ir = ir
}

// Reset puts the TAP back in its post-power-up state: no module
// selected, no pending command, control bits cleared.
func (t *TAP) Reset() {
	*t = TAP{mem: t.mem, spr: t.spr}
}

// SelectModule processes a SELECT_MODULE DR shift
// (original_source/debug/jtag.c's select_module): crcIn is the CRC
// computed by the caller over the incoming bits (crc32Init if this is
// the start of a fresh shift), mod is the decoded module ID field.
// Returns the status and the outgoing CRC over the status nibble, the
// same two things the real TAP shifts back out to TDO.
func (t *TAP) SelectModule(mod ModuleID, crcIn uint32) (Status, uint32) {
	status := StatusOK
	if mod.valid() {
		t.mod = mod
		t.haveCmd = false
	} else {
		status |= StatusModuleMissing
		t.mod = ModuleUndefined
	}
	crcOut := updateCRC32(uint64(status), 4, crcIn)
	return status, crcOut
}

// WriteCommand processes a WRITE_COMMAND DR shift
// (original_source/debug/jtag.c's write_command): it records the
// target address, transfer size, direction and access width for the
// GO_COMMAND that follows. CPU0/CPU1 targets are SPR accesses, always
// 32 bits wide, with the address taken modulo the SPR space size; a
// WRITE_COMMAND that declares an 8- or 16-bit access for a CPU module
// cannot be serviced at all, so it is rejected with a status error and
// no command is recorded, rather than silently widened to 32 bits
// (spec.md §8, Testable Property 9).
func (t *TAP) WriteCommand(addr, size uint32, isWrite bool, access AccessType, crcIn uint32) (Status, uint32) {
	status := StatusOK
	if t.mod == ModuleUndefined {
		status |= StatusModuleMissing
	}
	if t.mod == ModuleCPU0 || t.mod == ModuleCPU1 {
		addr = addr % (1 << 16)
		if access != Access32 {
			status |= StatusWishboneError
		}
	}
	if status == StatusOK {
		t.cmdAddr, t.cmdSize, t.cmdWrite, t.cmdAccess = addr, size, isWrite, access
	}
	t.haveCmd = status == StatusOK
	crcOut := updateCRC32(uint64(status), 4, crcIn)
	return status, crcOut
}

// ReadCommand returns the fields recorded by the last WriteCommand
// (original_source/debug/jtag.c's read_command), used by a debugger
// to confirm what it just wrote before issuing a GO_COMMAND.
func (t *TAP) ReadCommand() (addr, size uint32, isWrite bool, access AccessType, status Status) {
	if !t.haveCmd {
		return 0, 0, false, Access8, StatusModuleMissing
	}
	return t.cmdAddr, t.cmdSize, t.cmdWrite, t.cmdAccess, StatusOK
}

// GoCommand executes the transfer described by the last WriteCommand
// (original_source/debug/jtag.c's jtag_command's GO_COMMAND
// dispatch): for a read, it returns len(data) bytes fetched from the
// target (ignoring the supplied data); for a write, it stores data to
// the target. If the supplied data's length does not match the size
// declared by WriteCommand, StatusOverUnderRun is reported and the
// shorter of the two lengths is used (over/under-run handling,
// spec.md §4.9).
func (t *TAP) GoCommand(data []byte) ([]byte, Status, uint32) {
	if !t.haveCmd {
		return nil, StatusModuleMissing, updateCRC32(uint64(StatusModuleMissing), 4, crc32Init)
	}
	status := StatusOK
	n := t.cmdSize
	if uint32(len(data)) != n {
		status |= StatusOverUnderRun
		if uint32(len(data)) < n {
			n = uint32(len(data))
		}
	}

	var out []byte
	crc := crc32Init
	if t.cmdWrite {
		for i := uint32(0); i < n; i++ {
			if err := t.storeByte(t.cmdAddr+i, data[i]); err != nil {
				status |= StatusWishboneError
				break
			}
			crc = updateCRC32(uint64(data[i]), 8, crc)
		}
	} else {
		out = make([]byte, n)
		for i := uint32(0); i < n; i++ {
			b, err := t.loadByte(t.cmdAddr + i)
			if err != nil {
				status |= StatusWishboneError
				break
			}
			out[i] = b
			crc = updateCRC32(uint64(b), 8, crc)
		}
		t.cmdAddr += n
	}
	return out, status, crc
}

func (t *TAP) loadByte(addr uint32) (byte, error) {
	if t.mod == ModuleWishbone {
		v, err := t.mem.Read8(addr)
		return byte(v), err
	}
	v, err := t.spr.ReadSPR(uint16(addr))
	return byte(v), err
}

func (t *TAP) storeByte(addr uint32, b byte) error {
	if t.mod == ModuleWishbone {
		return t.mem.Write8(addr, uint32(b))
	}
	return t.spr.WriteSPR(uint16(addr), uint32(b))
}

// WriteControl sets the CPU reset/stall control bits
// (original_source/debug/jtag.c's DC_RESET/DC_STALL family).
func (t *TAP) WriteControl(bits uint32) {
	t.control = bits
	t.resetRequested = bits&ControlReset != 0
	t.stallRequested = bits&ControlStall != 0
}

// ReadControl returns the current control bits.
func (t *TAP) ReadControl() uint32 { return t.control }

// ResetRequested and StallRequested report the host-observable effect
// of the last WriteControl. core.Simulator.Run and cmd/or1ksim's
// stepping loops poll StallRequested between instructions; nothing in
// the simulator acts on ResetRequested, so a reset request does not
// reset the CPU.
func (t *TAP) ResetRequested() bool { return t.resetRequested }
func (t *TAP) StallRequested() bool { return t.stallRequested }

// Command selects which DEBUG data register operation a ShiftDR call
// performs, mirroring original_source/debug/jtag.c's enum jtag_cmd
// (JCMD_GO_COMMAND..JCMD_WRITE_CONTROL). CmdSelectModule is this
// repo's own addition for the one DR operation (select_module) the
// retrieved jtag.h excerpt does not assign a JCMD_* code to.
type Command int

const (
	CmdGoCommand Command = iota
	CmdReadCommand
	CmdWriteCommand
	CmdReadControl
	CmdWriteControl
	CmdSelectModule
)

// DRRequest carries the fields a single jtag_shift_dr(buf) call decodes
// from its bit buffer; which fields are meaningful depends on Cmd. This
// models the DR payload at the field level rather than as a raw bit
// buffer, the same typed-over-bit-packed tradeoff documented for the
// rest of this package (DESIGN.md).
type DRRequest struct {
	Cmd Command

	Module ModuleID // CmdSelectModule

	Addr, Size uint32    // CmdWriteCommand
	IsWrite    bool      // CmdWriteCommand
	Access     AccessType // CmdWriteCommand

	Data []byte // CmdGoCommand: write payload in, read payload out

	Control uint32 // CmdWriteControl

	CRCIn uint32
}

// DRResponse is what a jtag_shift_dr(buf) call shifts back out to TDO.
type DRResponse struct {
	Status Status
	CRCOut uint32
	Data   []byte // CmdGoCommand read payload, CmdReadCommand/ReadControl encoded fields
}

// ShiftDR implements the jtag_shift_dr(buf) embedding call (spec.md
// §6, §4.9) by dispatching req.Cmd to the typed method that command
// corresponds to.
func (t *TAP) ShiftDR(req DRRequest) DRResponse {
	switch req.Cmd {
	case CmdSelectModule:
		status, crc := t.SelectModule(req.Module, req.CRCIn)
		return DRResponse{Status: status, CRCOut: crc}
	case CmdWriteCommand:
		status, crc := t.WriteCommand(req.Addr, req.Size, req.IsWrite, req.Access, req.CRCIn)
		return DRResponse{Status: status, CRCOut: crc}
	case CmdReadCommand:
		addr, size, isWrite, access, status := t.ReadCommand()
		return DRResponse{Status: status, Data: encodeReadCommand(addr, size, isWrite, access)}
	case CmdGoCommand:
		out, status, crc := t.GoCommand(req.Data)
		return DRResponse{Status: status, CRCOut: crc, Data: out}
	case CmdWriteControl:
		t.WriteControl(req.Control)
		return DRResponse{Status: StatusOK}
	case CmdReadControl:
		v := t.ReadControl()
		return DRResponse{Status: StatusOK, Data: []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}}
	default:
		return DRResponse{Status: StatusModuleMissing}
	}
}

// encodeReadCommand packs ReadCommand's fields into a byte slice a
// caller can compare or log, mirroring the shape a real
// jtag_shift_dr(buf) would shift back for a READ_COMMAND.
func encodeReadCommand(addr, size uint32, isWrite bool, access AccessType) []byte {
	w := byte(0)
	if isWrite {
		w = 1
	}
	return []byte{
		byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr),
		byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size),
		w, byte(access),
	}
}
