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

// Package debug implements component I (spec.md §4.9, §5): the JTAG
// TAP state machine and its DEBUG data-register command set, modeling
// original_source/debug/jtag.c's protocol at the level of its
// commands and status codes rather than its exact bit-packed wire
// layout.
package debug

// crc32Poly is the IEEE 802.3 polynomial used bit-serially, MSB
// first, exactly as original_source/debug/jtag.c's crc32().
const crc32Poly = 0x04c11db7

// crc32Init is the seed used at the start of every JTAG register's
// CRC computation, so that leading zero bits are not invisible to the
// check.
const crc32Init uint32 = 0xffffffff

// updateCRC32 folds numBits bits of value (MSB first within those
// numBits) into a running CRC, bit-serially, matching jtag.c's crc32.
func updateCRC32(value uint64, numBits int, crcIn uint32) uint32 {
	crc := crcIn
	for i := numBits - 1; i >= 0; i-- {
		bit := uint32(value>>uint(i)) & 1
		top := (crc >> 31) & 1
		crc <<= 1
		if bit^top == 1 {
			crc ^= crc32Poly
		}
	}
	return crc
}
