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

import (
	"encoding/binary"
	"fmt"
	"io"
	"syscall"

	"go.bug.st/serial"
)

// SerialTransport carries DEBUG module commands over a real serial
// link to an external debugger, the way the teacher's dev.Arduino
// carries a download protocol to a physical board (spec.md §4.9,
// §6's optional external JTAG pod).
type SerialTransport struct {
	port serial.Port
}

// OpenSerialTransport opens deviceName at baudRate with the 8N1 frame
// the teacher's Arduino transport uses.
func OpenSerialTransport(deviceName string, baudRate int) (*SerialTransport, error) {
	mode := &serial.Mode{BaudRate: baudRate, DataBits: 8,
		Parity: serial.NoParity, StopBits: serial.OneStopBit}
	port, err := serial.Open(deviceName, mode)
	if err != nil {
		return nil, err
	}
	return &SerialTransport{port: port}, nil
}

func (s *SerialTransport) Close() error { return s.port.Close() }

// readBytes and writeBytes retry on EINTR, which fires constantly
// under Go's goroutine-level scheduling (teacher's
// isRetryableSyscallError / readByte / writeBytes pattern).
func (s *SerialTransport) readBytes(buf []byte) error {
	for off := 0; off < len(buf); {
		n, err := s.port.Read(buf[off:])
		if err != nil {
			if isRetryableSyscallError(err) {
				continue
			}
			return err
		}
		if n == 0 {
			return io.ErrUnexpectedEOF
		}
		off += n
	}
	return nil
}

func (s *SerialTransport) writeBytes(buf []byte) error {
	for off := 0; off < len(buf); {
		n, err := s.port.Write(buf[off:])
		if err != nil {
			if isRetryableSyscallError(err) {
				continue
			}
			return err
		}
		off += n
	}
	return nil
}

func isRetryableSyscallError(err error) bool {
	const eIntr = 4
	if errno, ok := err.(syscall.Errno); ok {
		return errno == eIntr
	}
	return false
}

// Frame opcodes for the serial DEBUG command stream: one byte opcode,
// a big-endian uint16 payload length, then the payload.
const (
	frameSelectModule = 0x01
	frameWriteCommand = 0x02
	frameReadCommand  = 0x03
	frameGoCommand    = 0x04
	frameWriteControl = 0x05
	frameReadControl  = 0x06
)

// ServeOne reads a single framed command from the transport, applies
// it to tap, and writes back a framed response. It returns io.EOF
// when the link is closed cleanly.
func ServeOne(t *TAP, s *SerialTransport) error {
	header := make([]byte, 3)
	if err := s.readBytes(header); err != nil {
		return err
	}
	opcode := header[0]
	length := binary.BigEndian.Uint16(header[1:3])
	payload := make([]byte, length)
	if length > 0 {
		if err := s.readBytes(payload); err != nil {
			return err
		}
	}

	var status Status
	var resp []byte

	switch opcode {
	case frameSelectModule:
		if len(payload) < 1 {
			return fmt.Errorf("serial debug: short SELECT_MODULE frame")
		}
		status, _ = t.SelectModule(ModuleID(payload[0]), crc32Init)

	case frameWriteCommand:
		if len(payload) < 10 {
			return fmt.Errorf("serial debug: short WRITE_COMMAND frame")
		}
		addr := binary.BigEndian.Uint32(payload[0:4])
		size := binary.BigEndian.Uint32(payload[4:8])
		isWrite := payload[8] != 0
		access := AccessType(payload[9])
		status, _ = t.WriteCommand(addr, size, isWrite, access, crc32Init)

	case frameReadCommand:
		addr, size, isWrite, access, st := t.ReadCommand()
		status = st
		resp = make([]byte, 10)
		binary.BigEndian.PutUint32(resp[0:4], addr)
		binary.BigEndian.PutUint32(resp[4:8], size)
		if isWrite {
			resp[8] = 1
		}
		resp[9] = byte(access)

	case frameGoCommand:
		var out []byte
		out, status, _ = t.GoCommand(payload)
		resp = out

	case frameWriteControl:
		if len(payload) < 4 {
			return fmt.Errorf("serial debug: short WRITE_CONTROL frame")
		}
		t.WriteControl(binary.BigEndian.Uint32(payload))

	case frameReadControl:
		resp = make([]byte, 4)
		binary.BigEndian.PutUint32(resp, t.ReadControl())

	default:
		return fmt.Errorf("serial debug: unknown opcode 0x%02x", opcode)
	}

	out := make([]byte, 3+len(resp))
	out[0] = byte(status)
	binary.BigEndian.PutUint16(out[1:3], uint16(len(resp)))
	copy(out[3:], resp)
	return s.writeBytes(out)
}
