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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-sdmmc"
)

var (
	errInvalidCommand  = errors.New("command index must be 0-63")
	errInvalidResponse = errors.New("response width must be 0, 1, 4 or 16")
	errInvalidLength   = errors.New("read length must not be negative")
	errInvalidNCR      = errors.New("NCR limit must not be negative")
	errNoResponse      = errors.New("card did not answer")
)

// request describes one raw exchange sequence run against a card
type request struct {
	wait    time.Duration
	arg     uint32
	cmd     int
	resp    int
	read    int
	ncr     int
	flush   bool
	busy    bool
	command bool
}

func (r *request) validate() error {
	if r.command && (r.cmd < 0 || r.cmd > sdmmc.CommandIndexMask) {
		return fmt.Errorf("%w: got %d", errInvalidCommand, r.cmd)
	}
	switch r.resp {
	case 0, 1, 4, 16:
	default:
		return fmt.Errorf("%w: got %d", errInvalidResponse, r.resp)
	}
	if r.read < 0 {
		return fmt.Errorf("%w: got %d", errInvalidLength, r.read)
	}
	if r.ncr < 0 {
		return fmt.Errorf("%w: got %d", errInvalidNCR, r.ncr)
	}
	return nil
}

// execute runs req in a fixed order: flush, command, response, data read,
// busy wait or busy sample. Results are printed to out.
func execute(ctx context.Context, t sdmmc.Transport, req *request, out io.Writer) error {
	if err := req.validate(); err != nil {
		return err
	}

	if req.flush {
		if err := t.Flush(); err != nil {
			return fmt.Errorf("flush failed: %w", err)
		}
		_, _ = fmt.Fprintln(out, "flushed")
	}

	if req.command {
		if err := t.WriteCommand(byte(req.cmd), req.arg); err != nil {
			return fmt.Errorf("CMD%d failed: %w", req.cmd, err)
		}
		sdmmc.Debugf("sent CMD%d arg=0x%08X", req.cmd, req.arg)
	}

	if req.ncr > 0 && req.resp > 0 {
		if err := readAfterNCR(t, req.ncr, req.resp, out); err != nil {
			return err
		}
	} else if err := readResponse(t, req.resp, out); err != nil {
		return err
	}

	if req.read > 0 {
		buf := make([]byte, req.read)
		if err := t.ReadData(buf); err != nil {
			return fmt.Errorf("data read failed: %w", err)
		}
		_, _ = fmt.Fprintf(out, "data: % X\n", buf)
	}

	switch {
	case req.wait > 0:
		waitCtx, cancel := context.WithTimeout(ctx, req.wait)
		defer cancel()
		if err := sdmmc.WaitReady(waitCtx, t, time.Millisecond); err != nil {
			return fmt.Errorf("waiting for card: %w", err)
		}
		_, _ = fmt.Fprintln(out, "ready")
	case req.busy:
		busy, err := t.IsBusy()
		if err != nil {
			return fmt.Errorf("busy check failed: %w", err)
		}
		_, _ = fmt.Fprintf(out, "busy: %t\n", busy)
	}

	return nil
}

// readAfterNCR clocks up to limit bytes until the card drives something
// other than 0xFF and prints that byte as R1. Wider responses are read
// after it, the way R3 and R7 follow their R1.
func readAfterNCR(t sdmmc.Transport, limit, width int, out io.Writer) error {
	for i := range limit {
		r1, err := t.ReadResponseU8()
		if err != nil {
			return fmt.Errorf("response read failed: %w", err)
		}
		if r1 == sdmmc.FillByte {
			continue
		}
		sdmmc.Debugf("R1 after %d fill bytes", i)
		_, _ = fmt.Fprintf(out, "R1: 0x%02X\n", r1)
		if width == 1 {
			return nil
		}
		return readResponse(t, width, out)
	}
	return fmt.Errorf("%w within %d bytes", errNoResponse, limit)
}

func readResponse(t sdmmc.Transport, width int, out io.Writer) error {
	switch width {
	case 1:
		r1, err := t.ReadResponseU8()
		if err != nil {
			return fmt.Errorf("response read failed: %w", err)
		}
		_, _ = fmt.Fprintf(out, "R1: 0x%02X\n", r1)
	case 4:
		r, err := t.ReadResponseU32()
		if err != nil {
			return fmt.Errorf("response read failed: %w", err)
		}
		_, _ = fmt.Fprintf(out, "R32: 0x%08X\n", r)
	case 16:
		r, err := t.ReadResponseU128()
		if err != nil {
			return fmt.Errorf("response read failed: %w", err)
		}
		_, _ = fmt.Fprintf(out, "R128: 0x%016X%016X\n", r.Hi, r.Lo)
	}
	return nil
}
