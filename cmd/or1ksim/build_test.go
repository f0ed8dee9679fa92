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

package main

import (
	"testing"

	"github.com/openrisc-sim/or1kcore/internal/config"
	"github.com/openrisc-sim/or1kcore/internal/core"
)

func TestBuildSimulatorWithoutMemorySectionGetsFallbackRAM(t *testing.T) {
	cfg := config.Default()
	sim, err := buildSimulator(cfg, nil)
	if err != nil {
		t.Fatalf("buildSimulator: %v", err)
	}
	if err := sim.AS.Write8(0x10, 0x42); err != nil {
		t.Fatalf("write to fallback RAM: %v", err)
	}
	v, err := sim.AS.Read8(0x10)
	if err != nil || v != 0x42 {
		t.Errorf("read back fallback RAM = (0x%x, %v), want (0x42, nil)", v, err)
	}
}

func TestBuildSimulatorWithMemorySection(t *testing.T) {
	cfg := config.Default()
	cfg.Peripherals = []config.PeripheralConfig{
		{Name: "memory", BaseAddr: 0, Size: 0x1000, Enabled: true},
	}
	sim, err := buildSimulator(cfg, nil)
	if err != nil {
		t.Fatalf("buildSimulator: %v", err)
	}
	if _, err := sim.AS.Read8(0x2000); err == nil {
		t.Errorf("expected a bus error outside the configured memory region")
	}
}

func TestBuildSimulatorUnknownPeripheralIsError(t *testing.T) {
	cfg := config.Default()
	cfg.Peripherals = []config.PeripheralConfig{
		{Name: "bogus", BaseAddr: 0, Size: 0x10, Enabled: true},
	}
	if _, err := buildSimulator(cfg, nil); err == nil {
		t.Errorf("expected an error for an unrecognised peripheral section")
	}
}

func TestBuildSimulatorDisabledPeripheralIsSkipped(t *testing.T) {
	cfg := config.Default()
	cfg.Peripherals = []config.PeripheralConfig{
		{Name: "bogus", BaseAddr: 0, Size: 0x10, Enabled: false},
	}
	if _, err := buildSimulator(cfg, nil); err != nil {
		t.Errorf("buildSimulator with a disabled unknown peripheral: %v", err)
	}
}

func TestBuildSimulatorAppliesCPUSRAndSurvivesReset(t *testing.T) {
	cfg := config.Default()
	cfg.CPU.SR = core.SR_SM | core.SR_IEE
	sim, err := buildSimulator(cfg, nil)
	if err != nil {
		t.Fatalf("buildSimulator: %v", err)
	}
	sim.Reset()
	got, err := sim.ReadSPR(core.SPR_SR)
	if err != nil {
		t.Fatalf("ReadSPR(SR): %v", err)
	}
	if got != cfg.CPU.SR {
		t.Errorf("SR after Reset = 0x%x, want 0x%x (config.cpu.sr reapplied by reset hook)", got, cfg.CPU.SR)
	}
}

func TestBuildSimulatorCacheAndMMUEnableFollowConfig(t *testing.T) {
	cfg := config.Default()
	cfg.IC.Enabled = true
	cfg.DMMU.Enabled = true
	sim, err := buildSimulator(cfg, nil)
	if err != nil {
		t.Fatalf("buildSimulator: %v", err)
	}
	if !sim.ICache.Enabled {
		t.Errorf("ICache.Enabled = false, want true per config")
	}
	if sim.DCache.Enabled {
		t.Errorf("DCache.Enabled = true, want false per config")
	}
	if !sim.DMMU.Enabled {
		t.Errorf("DMMU.Enabled = false, want true per config")
	}
}

func TestBuildSimulatorAttachesJTAGWhenDebugEnabled(t *testing.T) {
	cfg := config.Default()
	sim, err := buildSimulator(cfg, nil)
	if err != nil {
		t.Fatalf("buildSimulator: %v", err)
	}
	if err := sim.JTAGReset(); err == nil {
		t.Errorf("JTAGReset() with debug disabled: want error, got nil (no TAP should be attached)")
	}

	cfg.Debug.Enabled = true
	sim, err = buildSimulator(cfg, nil)
	if err != nil {
		t.Fatalf("buildSimulator: %v", err)
	}
	if err := sim.JTAGReset(); err != nil {
		t.Errorf("JTAGReset() with debug.enabled=true: %v, want nil (TAP should be attached)", err)
	}
}

func TestLoadImageWritesBytesInOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Peripherals = []config.PeripheralConfig{
		{Name: "memory", BaseAddr: 0, Size: 0x1000, Enabled: true},
	}
	sim, err := buildSimulator(cfg, nil)
	if err != nil {
		t.Fatalf("buildSimulator: %v", err)
	}
	data := []byte{0x11, 0x22, 0x33, 0x44}
	if err := loadImage(sim, data, 0x100); err != nil {
		t.Fatalf("loadImage: %v", err)
	}
	for i, want := range data {
		got, err := sim.AS.Read8(0x100 + uint32(i))
		if err != nil || uint32(got) != uint32(want) {
			t.Errorf("byte %d = (0x%x, %v), want 0x%x", i, got, err, want)
		}
	}
}
