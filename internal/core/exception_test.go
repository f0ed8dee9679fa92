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

func TestVectorOffsetsAreUniqueAndSlotted(t *testing.T) {
	seen := map[uint32]ExceptionKind{}
	for kind, off := range vectorOffset {
		if off%0x100 != 0 {
			t.Errorf("vector offset for %v = 0x%x, not a multiple of 0x100", kind, off)
		}
		if other, ok := seen[off]; ok {
			t.Errorf("vector offset 0x%x shared by %v and %v", off, kind, other)
		}
		seen[off] = kind
	}
}

func TestExceptionKindStringNeverEmpty(t *testing.T) {
	kinds := []ExceptionKind{
		ExcNone, ExcReset, ExcBusError, ExcDataPageFault, ExcInsnPageFault,
		ExcTickTimer, ExcAlignment, ExcIllegalInsn, ExcExternalInterrupt,
		ExcDTLBMiss, ExcITLBMiss, ExcRange, ExcSyscall, ExcFloatingPoint, ExcTrap,
	}
	for _, k := range kinds {
		if k.String() == "" {
			t.Errorf("ExceptionKind(%d).String() is empty", int(k))
		}
	}
}

func TestArchExceptionErrorIncludesKindAndAddress(t *testing.T) {
	exc := newExc(ExcBusError, 0x1234)
	msg := exc.Error()
	if msg == "" {
		t.Fatalf("Error() returned empty string")
	}
}

func TestHostErrorFormatting(t *testing.T) {
	err := newHostError("region %q overlaps %q", "a", "b")
	want := `region "a" overlaps "b"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
