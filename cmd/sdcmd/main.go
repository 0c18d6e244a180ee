// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command sdcmd sends a single raw command to an SD card on an SPI bus and
// prints what comes back.
//
//	sdcmd -device /dev/spidev0.0 -flush -cmd 0 -resp 1
//	sdcmd -cmd 8 -arg 0x1AA -resp 4 -ncr 8 -trace
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-sdmmc"
	"github.com/ZaparooProject/go-sdmmc/detection"
	_ "github.com/ZaparooProject/go-sdmmc/detection/spi"
	"github.com/ZaparooProject/go-sdmmc/transport/spi"
	"periph.io/x/conn/v3/physic"
)

type config struct {
	req        request
	devicePath string
	frequency  physic.Frequency
	trace      bool
	debug      bool
	sessionLog bool
}

// Package-level flag variables
var (
	flagDevicePath string
	flagArg        string
	flagFrequency  = spi.DefaultFrequency
	flagWait       time.Duration
	flagCmd        int
	flagResp       int
	flagRead       int
	flagNCR        int
	flagFlush      bool
	flagBusy       bool
	flagTrace      bool
	flagDebug      bool
	flagLog        bool
)

func init() {
	flag.StringVar(&flagDevicePath, "device", "", "SPI port (auto-detect if empty)")
	flag.Var(&flagFrequency, "freq", "Bus clock, e.g. 400kHz or 25MHz")
	flag.IntVar(&flagCmd, "cmd", -1, "Command index to send (0-63, -1 for none)")
	flag.StringVar(&flagArg, "arg", "0", "Command argument (decimal or 0x hex)")
	flag.IntVar(&flagResp, "resp", 1,
		"Response width in bytes to read right after the command (0, 1, 4, 16); "+
			"cards answer 1-8 bytes late, so use -ncr on real hardware")
	flag.IntVar(&flagNCR, "ncr", 0,
		"Skip up to N 0xFF bytes waiting for R1 before reading -resp (0 reads immediately)")
	flag.IntVar(&flagRead, "read", 0, "Number of data bytes to clock in after the response")
	flag.BoolVar(&flagFlush, "flush", false, "Clock flush cycles before anything else")
	flag.BoolVar(&flagBusy, "busy", false, "Sample the busy state at the end")
	flag.DurationVar(&flagWait, "wait", 0, "Wait up to this long for the card to leave busy state")
	flag.BoolVar(&flagTrace, "trace", false, "Print a wire trace after the run")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagLog, "log", false, "Write a session log file in the current directory")
}

func parseConfig() (*config, error) {
	arg, err := strconv.ParseUint(flagArg, 0, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid -arg %q: %w", flagArg, err)
	}

	cfg := &config{
		devicePath: flagDevicePath,
		frequency:  flagFrequency,
		trace:      flagTrace,
		debug:      flagDebug,
		sessionLog: flagLog,
		req: request{
			command: flagCmd >= 0,
			cmd:     flagCmd,
			arg:     uint32(arg),
			resp:    flagResp,
			read:    flagRead,
			ncr:     flagNCR,
			flush:   flagFlush,
			busy:    flagBusy,
			wait:    flagWait,
		},
	}
	if !cfg.req.command {
		cfg.req.resp = 0
	}

	if cfg.debug {
		sdmmc.SetDebugEnabled(true)
	}
	return cfg, nil
}

// resolveDevice picks the first detected SPI port when none was given
func resolveDevice(ctx context.Context, cfg *config) error {
	if cfg.devicePath != "" {
		return nil
	}

	opts := detection.DefaultOptions()
	opts.Transports = []string{"spi"}
	devices, err := detection.DetectAll(ctx, &opts)
	if err != nil {
		return fmt.Errorf("no device given and detection failed: %w", err)
	}

	device := devices[0]
	sdmmc.Debugf("using detected %s", device)
	cfg.devicePath = device.Path

	if f, ok := device.Metadata["frequency"]; ok && !isFlagSet("freq") {
		if err := cfg.frequency.Set(f); err != nil {
			return fmt.Errorf("invalid frequency %q for %s: %w", f, device.Path, err)
		}
	}
	return nil
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func run(ctx context.Context, cfg *config) error {
	if err := cfg.req.validate(); err != nil {
		return err
	}
	if err := resolveDevice(ctx, cfg); err != nil {
		return err
	}

	opened, err := spi.Open(cfg.devicePath, spi.WithFrequency(cfg.frequency))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", cfg.devicePath, err)
	}
	link, err := opened.Release()
	if err != nil {
		return fmt.Errorf("failed to take SPI link: %w", err)
	}
	defer func() {
		if err := link.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
		}
	}()

	tracing := sdmmc.NewTracingConn(link, link.String(), 64)
	transport := spi.New(tracing)

	runErr := execute(ctx, transport, &cfg.req, os.Stdout)
	if cfg.trace || (runErr != nil && cfg.debug) {
		_, _ = fmt.Print(tracing.Trace().FormatTrace())
	}
	return runErr
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if cfg.sessionLog {
		path, err := sdmmc.InitSessionLog("")
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		_, _ = fmt.Printf("Session log: %s\n", path)
		defer func() { _ = sdmmc.CloseSessionLog() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
