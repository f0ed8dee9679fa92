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

import "testing"

func TestStatusStringOK(t *testing.T) {
	if got := StatusOK.String(); got != "ok" {
		t.Errorf("StatusOK.String() = %q, want %q", got, "ok")
	}
}

func TestStatusStringSingleBit(t *testing.T) {
	cases := []struct {
		s    Status
		want string
	}{
		{StatusCRCError, "crc-error"},
		{StatusModuleMissing, "module-missing"},
		{StatusWishboneError, "wishbone-error"},
		{StatusOverUnderRun, "over-under-run"},
	}
	for _, c := range cases {
		if got := c.s.String(); got != c.want {
			t.Errorf("Status(%d).String() = %q, want %q", c.s, got, c.want)
		}
	}
}

func TestStatusStringMultiBitJoinedWithPipe(t *testing.T) {
	s := StatusCRCError | StatusWishboneError
	want := "crc-error|wishbone-error"
	if got := s.String(); got != want {
		t.Errorf("Status.String() = %q, want %q", got, want)
	}
}

func TestModuleIDValid(t *testing.T) {
	cases := []struct {
		m    ModuleID
		want bool
	}{
		{ModuleUndefined, false},
		{ModuleWishbone, true},
		{ModuleCPU0, true},
		{ModuleCPU1, true},
		{ModuleID(4), false},
		{ModuleID(255), false},
	}
	for _, c := range cases {
		if got := c.m.valid(); got != c.want {
			t.Errorf("ModuleID(%d).valid() = %v, want %v", c.m, got, c.want)
		}
	}
}
