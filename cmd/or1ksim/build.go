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
	"fmt"
	"os"

	"github.com/openrisc-sim/or1kcore/internal/config"
	"github.com/openrisc-sim/or1kcore/internal/core"
	"github.com/openrisc-sim/or1kcore/internal/trace"
)

// buildSimulator wires a core.Simulator from a parsed config the way
// spec.md §6's init(config, image, upcall_read, upcall_write) does:
// build every component, register every enabled peripheral section as
// a region, then let the caller load the image separately.
func buildSimulator(cfg config.Config, tracer *trace.Tracer) (*core.Simulator, error) {
	as := core.NewAddressSpace(tracer)

	haveMemory := false
	for _, p := range cfg.Peripherals {
		if !p.Enabled {
			continue
		}
		region, err := buildPeripheralRegion(p)
		if err != nil {
			return nil, err
		}
		if region == nil {
			continue
		}
		if err := as.Register(region); err != nil {
			return nil, err
		}
		if p.Name == "memory" {
			haveMemory = true
		}
	}
	if !haveMemory {
		// A host configuration with no memory section is still
		// nonsensical; fall back to a generous flat RAM region rather
		// than refuse to run, matching spec §6's "conservative
		// defaults when a section is absent" policy elsewhere.
		as.Register(core.NewRAMRegion("ram", 0, 0x01000000, 0, 0))
	}

	icache := core.NewCache(uint32(cfg.IC.BlockSize), cfg.IC.NSets, cfg.IC.NWays,
		uint32(cfg.IC.HitDelay), uint32(cfg.IC.MissDelay), cfg.IC.WriteBack)
	icache.Enabled = cfg.IC.Enabled
	dcache := core.NewCache(uint32(cfg.DC.BlockSize), cfg.DC.NSets, cfg.DC.NWays,
		uint32(cfg.DC.HitDelay), uint32(cfg.DC.MissDelay), cfg.DC.WriteBack)
	dcache.Enabled = cfg.DC.Enabled

	immu := core.NewInstructionMMU(uint32(cfg.IMMU.PageSize), cfg.IMMU.NSets, cfg.IMMU.NWays, uint32(cfg.IMMU.HitDelay))
	immu.Enabled = cfg.IMMU.Enabled
	dmmu := core.NewDataMMU(uint32(cfg.DMMU.PageSize), cfg.DMMU.NSets, cfg.DMMU.NWays, uint32(cfg.DMMU.HitDelay))
	dmmu.Enabled = cfg.DMMU.Enabled

	pic := core.NewInterruptController(tracer)
	pic.Enabled = cfg.PIC.Enabled
	pic.UseNMI = cfg.PIC.UseNMI
	for line := 0; line < core.NumIntLines; line++ {
		pic.SetLineMode(line, cfg.PIC.EdgeTriggered)
	}

	sched := core.NewScheduler(tracer)

	clockHz := uint64(1)
	if cfg.Sim.ClkCyclePS > 0 {
		clockHz = 1_000_000_000_000 / uint64(cfg.Sim.ClkCyclePS)
	}

	sim := core.NewSimulator(as, icache, dcache, immu, dmmu, pic, sched, tracer, clockHz)

	if cfg.Debug.Enabled {
		sim.AttachJTAG()
	}

	// cpu.sr from config must survive every Reset, not just the first
	// one (Reset re-homes the CPU at its architectural default, SR_SM
	// only), so it is applied as a reset hook rather than once here.
	if cfg.CPU.SR != 0 {
		sim.AddResetHook(func() {
			if err := sim.WriteSPR(core.SPR_SR, cfg.CPU.SR); err != nil {
				fmt.Fprintf(os.Stderr, "warning: applying cpu.sr from config: %v\n", err)
			}
		})
	}

	return sim, nil
}

// buildPeripheralRegion maps one config.PeripheralConfig onto a
// core.Region. "memory" and "uart" get real behaviour; the remaining
// recognised kinds (eth, kbd, vga, fb, mc, gpio, generic) are an
// explicit Non-goal beyond the generic memory-mapped interface
// (spec.md §1), so they get a plain RAM-backed region: reads and
// writes succeed and are visible to each other, but no device
// behaviour is modelled. That silence is reported once to stderr so a
// config author notices rather than assuming the device is live.
func buildPeripheralRegion(p config.PeripheralConfig) (*core.Region, error) {
	switch p.Name {
	case "memory":
		return core.NewRAMRegion(p.Name, p.BaseAddr, p.Size, 0, 0), nil
	case "uart":
		return newUARTRegion(p, os.Stdin, os.Stdout)
	case "eth", "kbd", "vga", "fb", "mc", "gpio", "generic":
		fmt.Fprintf(os.Stderr, "warning: peripheral %q (%s) has no modelled behaviour, mapped as plain memory\n", p.Name, p.Name)
		return core.NewRAMRegion(p.Name, p.BaseAddr, p.Size, 0, 0), nil
	default:
		return nil, fmt.Errorf("unknown peripheral section %q", p.Name)
	}
}

// loadImage pushes a raw memory image into the simulator's primary RAM
// region at loadAddr using ProgramWrite8, the bypass-dirty-tracking
// path spec.md §9's open question calls for an explicit policy on: an
// image loader is exactly the case that should bypass dirty tracking,
// since it is establishing initial state, not performing a guest
// store.
func loadImage(sim *core.Simulator, data []byte, loadAddr uint32) error {
	for i, b := range data {
		if err := sim.AS.ProgramWrite8(loadAddr+uint32(i), uint32(b)); err != nil {
			return fmt.Errorf("loading image at 0x%08x: %w", loadAddr+uint32(i), err)
		}
	}
	return nil
}
