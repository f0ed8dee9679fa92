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
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/openrisc-sim/or1kcore/internal/config"
	"github.com/openrisc-sim/or1kcore/internal/core"
	"github.com/openrisc-sim/or1kcore/internal/debug"
	"github.com/openrisc-sim/or1kcore/internal/trace"
)

var (
	configFile  = flag.String("config", "", "JSON configuration file (default settings if omitted)")
	traceFile   = flag.String("trace", "", "Write per-cycle execution trace to file")
	maxCycles   = flag.Uint64("max-cycles", 0, "Stop after N cycles (0 = unlimited)")
	loadAddr    = flag.Uint64("load-addr", 0, "Physical address to load the image at")
	realtime    = flag.Bool("realtime", false, "Throttle execution to the configured clock rate")
	showVersion = flag.Bool("version", false, "Show version and exit")
	jtagDevice  = flag.String("jtag-serial", "", "Serial device an external debugger attaches to (requires debug.enabled in config)")
	jtagBaud    = flag.Int("jtag-baud", 115200, "Baud rate for -jtag-serial")
)

const version = "1.0.0"

var savedTermState *term.State

// setupTerminal puts stdin in raw mode for the demo UART's console
// I/O, the way emul/main.go does for its own console.
func setupTerminal() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	state, err := term.GetState(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("getting terminal state: %w", err)
	}
	savedTermState = state
	if _, err := term.MakeRaw(int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("setting raw mode: %w", err)
	}
	return nil
}

func restoreTerminal() {
	if savedTermState != nil && term.IsTerminal(int(os.Stdin.Fd())) {
		term.Restore(int(os.Stdin.Fd()), savedTermState)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("or1ksim v%s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) != 1 {
		usage()
		os.Exit(1)
	}
	imageFile := args[0]

	data, err := os.ReadFile(imageFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading image file: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Default()
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	var tracer *trace.Tracer
	if *traceFile != "" {
		f, err := os.Create(*traceFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating trace file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		tracer = trace.New(f)
		tracer.Printf("or1ksim trace\nimage: %s (%d bytes)\n========================================\n\n", imageFile, len(data))
	}

	sim, err := buildSimulator(cfg, tracer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error building simulator: %v\n", err)
		os.Exit(1)
	}
	sim.Reset()

	if err := loadImage(sim, data, uint32(*loadAddr)); err != nil {
		fmt.Fprintf(os.Stderr, "error loading image: %v\n", err)
		os.Exit(1)
	}

	if err := setupTerminal(); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up terminal: %v\n", err)
		os.Exit(1)
	}
	defer restoreTerminal()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		restoreTerminal()
		os.Exit(130)
	}()

	var jtagMu sync.Mutex
	if cfg.Debug.Enabled && *jtagDevice != "" {
		transport, err := debug.OpenSerialTransport(*jtagDevice, *jtagBaud)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening JTAG serial device %s: %v\n", *jtagDevice, err)
			os.Exit(1)
		}
		go serveJTAG(sim.JTAG, transport, &jtagMu)
	}

	startTime := time.Now()
	var runErr error
	if *realtime {
		runErr = runRealtime(sim, *maxCycles, &jtagMu)
	} else {
		runErr = runWithJTAGLock(sim, *maxCycles, &jtagMu)
	}
	elapsed := time.Since(startTime)

	restoreTerminal()

	fmt.Fprintf(os.Stderr, "\n========================================\n")
	fmt.Fprintf(os.Stderr, "cycles: %d\n", sim.Cycles())
	fmt.Fprintf(os.Stderr, "time: %v\n", elapsed.Round(time.Millisecond))
	if elapsed.Seconds() > 0 {
		mhz := (float64(sim.Cycles()) / 1_000_000.0) / elapsed.Seconds()
		fmt.Fprintf(os.Stderr, "speed: %.3f MHz\n", mhz)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
	if sim.Halted() {
		fmt.Fprintf(os.Stderr, "exit: halted\n")
	} else if sim.Breakpoint() || (sim.JTAG != nil && sim.JTAG.StallRequested()) {
		fmt.Fprintf(os.Stderr, "exit: debug breakpoint\n")
	} else {
		fmt.Fprintf(os.Stderr, "exit: max-cycles reached\n")
	}
}

// runWithJTAGLock steps the simulator one instruction at a time,
// holding jtagMu only around each individual Step call so a
// concurrently running serveJTAG goroutine can acquire it between
// instructions — the one suspension point spec.md §5 grants JTAG
// access at. Used instead of sim.Run whenever -realtime is not set.
// It stops when the guest halts, when sim.Cycles() reaches maxCycles
// (0 = unlimited), or when the attached TAP requests a stall; unlike
// sim.Run it does not honor a ResetDuration budget and does not set
// sim.Breakpoint().
func runWithJTAGLock(sim *core.Simulator, maxCycles uint64, jtagMu *sync.Mutex) error {
	for !sim.Halted() {
		if maxCycles != 0 && sim.Cycles() >= maxCycles {
			return nil
		}
		if sim.JTAG != nil && sim.JTAG.StallRequested() {
			return nil
		}
		jtagMu.Lock()
		err := sim.Step()
		jtagMu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// runRealtime steps the simulator one instruction at a time, pacing
// wall-clock time to the simulated clock rate via unix.Nanosleep
// (-realtime, a host amenity outside spec.md's scope but a natural
// companion to ClockRate/GetTimePeriod). Every batch of steps checks
// the real elapsed time against the simulated time that should have
// elapsed and sleeps off the difference, rather than sleeping after
// every single instruction. jtagMu is held only per-Step, same as
// runWithJTAGLock, so a debugger attached over -jtag-serial can still
// get in between instructions.
func runRealtime(sim *core.Simulator, maxCycles uint64, jtagMu *sync.Mutex) error {
	const batch = 1000
	start := time.Now()
	startCycles := sim.Cycles()

	for !sim.Halted() {
		if maxCycles != 0 && sim.Cycles() >= maxCycles {
			return nil
		}
		if sim.JTAG != nil && sim.JTAG.StallRequested() {
			return nil
		}
		for i := 0; i < batch; i++ {
			if sim.Halted() || (maxCycles != 0 && sim.Cycles() >= maxCycles) {
				break
			}
			if sim.JTAG != nil && sim.JTAG.StallRequested() {
				break
			}
			jtagMu.Lock()
			err := sim.Step()
			jtagMu.Unlock()
			if err != nil {
				return err
			}
		}

		simulatedNS := sim.GetTimePeriod(sim.Cycles() - startCycles)
		realNS := uint64(time.Since(start).Nanoseconds())
		if simulatedNS > realNS {
			sleepFor := simulatedNS - realNS
			ts := unix.NsecToTimespec(int64(sleepFor))
			unix.Nanosleep(&ts, nil)
		}
	}
	return nil
}

// serveJTAG repeatedly serves one framed DEBUG command at a time from
// transport, holding jtagMu for the duration of each command the same
// way runWithJTAGLock/runRealtime hold it for one Step: the two
// goroutines never touch the TAP or CPU state at the same instant.
// Returns (by exiting the goroutine) when the transport is closed.
func serveJTAG(tap *debug.TAP, transport *debug.SerialTransport, jtagMu *sync.Mutex) {
	defer transport.Close()
	for {
		jtagMu.Lock()
		err := debug.ServeOne(tap, transport)
		jtagMu.Unlock()
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "JTAG serial transport error: %v\n", err)
			}
			return
		}
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <image-file>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "or1ksim - run a raw memory image against the or1k-style core\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nConsole I/O is connected to stdin/stdout through the demo UART region\n")
	fmt.Fprintf(os.Stderr, "when one is configured; use -trace to capture a per-cycle execution log.\n")
}
