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

// Status is the 4-bit response code every DEBUG command shifts back
// out (original_source/debug/jtag.c's enum jtag_status), returned
// alongside its CRC.
type Status uint8

const (
	StatusOK Status = 0
	// StatusCRCError marks a CRC mismatch on the incoming register.
	// The TAP in this package does not verify incoming CRCs (crcIn
	// only seeds the outgoing CRC), so none of its commands sets it.
	StatusCRCError Status = 1 << 0
	// StatusModuleMissing is returned by SelectModule for an unknown
	// module ID.
	StatusModuleMissing Status = 1 << 1
	// StatusWishboneError is returned when a Wishbone access lands
	// outside any registered memory region. Also returned by
	// WriteCommand for a CPU0/CPU1 target declared with an access
	// width other than 32 bits: the real TAP is hardwired to a 4-bit
	// status nibble with no spare bit for a distinct code, so an
	// SPR access that cannot be serviced at its declared width is
	// reported the same way as a Wishbone access that cannot be
	// serviced at its target address.
	StatusWishboneError Status = 1 << 2
	// StatusOverUnderRun is returned when a GoCommand's data length
	// does not match the length declared by the preceding WriteCommand.
	StatusOverUnderRun Status = 1 << 3
)

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	out := ""
	add := func(bit Status, name string) {
		if s&bit != 0 {
			if out != "" {
				out += "|"
			}
			out += name
		}
	}
	add(StatusCRCError, "crc-error")
	add(StatusModuleMissing, "module-missing")
	add(StatusWishboneError, "wishbone-error")
	add(StatusOverUnderRun, "over-under-run")
	return out
}

// ModuleID selects which debug module a subsequent WRITE_COMMAND /
// GO_COMMAND targets (original_source/debug/jtag.c's JM_* constants).
type ModuleID uint8

const (
	ModuleUndefined ModuleID = 0
	ModuleWishbone  ModuleID = 1
	ModuleCPU0      ModuleID = 2
	ModuleCPU1      ModuleID = 3
)

func (m ModuleID) valid() bool {
	return m == ModuleWishbone || m == ModuleCPU0 || m == ModuleCPU1
}
