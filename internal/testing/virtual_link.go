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

// Package testing provides wire-level doubles for exercising transports
// without hardware.
package testing

import (
	"github.com/ZaparooProject/go-sdmmc"
	"github.com/ZaparooProject/go-sdmmc/internal/frame"
	"github.com/ZaparooProject/go-sdmmc/internal/syncutil"
)

// ExchangeKind identifies which link primitive was used
type ExchangeKind string

const (
	// KindTransfer is a Transfer(w, r) call
	KindTransfer ExchangeKind = "transfer"
	// KindWrite is a Write(w) call
	KindWrite ExchangeKind = "write"
	// KindInPlace is a TransferInPlace(buf) call
	KindInPlace ExchangeKind = "in-place"
)

// Exchange records one call into the link
type Exchange struct {
	Kind ExchangeKind
	Out  []byte // bytes driven by the host
	In   []byte // bytes returned to the host (nil for writes)
}

// VirtualLink is a scripted full-duplex link. Every byte clocked in by the
// host is taken from a queue of card output; once the queue runs dry the
// card drives the idle level (0xFF). Writes do not consume queued output.
type VirtualLink struct {
	failErr   error
	queue     []byte
	log       []Exchange
	failAfter int
	mu        syncutil.Mutex
}

// NewVirtualLink creates a link with nothing queued
func NewVirtualLink() *VirtualLink {
	return &VirtualLink{failAfter: -1}
}

// Queue appends bytes the card will drive on the next exchanges
func (v *VirtualLink) Queue(data ...byte) {
	v.mu.Lock()
	v.queue = append(v.queue, data...)
	v.mu.Unlock()
}

// QueueBusy queues n busy samples (0x00) followed by nothing
func (v *VirtualLink) QueueBusy(n int) {
	v.mu.Lock()
	for range n {
		v.queue = append(v.queue, 0x00)
	}
	v.mu.Unlock()
}

// FailAfter makes every call after the first n successful ones fail with err
func (v *VirtualLink) FailAfter(n int, err error) {
	v.mu.Lock()
	v.failAfter = n
	v.failErr = err
	v.mu.Unlock()
}

// Log returns a copy of every exchange seen so far, failed ones included
func (v *VirtualLink) Log() []Exchange {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Exchange(nil), v.log...)
}

// Calls returns the number of link calls made so far
func (v *VirtualLink) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.log)
}

// Written returns every byte the host drove, in order
func (v *VirtualLink) Written() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []byte
	for _, e := range v.log {
		out = append(out, e.Out...)
	}
	return out
}

// Commands decodes every write that carries a well-formed command frame.
// Data blocks and malformed frames are skipped.
func (v *VirtualLink) Commands() []frame.Command {
	v.mu.Lock()
	defer v.mu.Unlock()
	var cmds []frame.Command
	for _, e := range v.log {
		if e.Kind != KindWrite || len(e.Out) != sdmmc.CommandFrameSize {
			continue
		}
		var f frame.Command
		copy(f[:], e.Out)
		if f.Valid() {
			cmds = append(cmds, f)
		}
	}
	return cmds
}

// Reset clears the log, the queue and any injected failure
func (v *VirtualLink) Reset() {
	v.mu.Lock()
	v.log = nil
	v.queue = nil
	v.failAfter = -1
	v.failErr = nil
	v.mu.Unlock()
}

// next pops n bytes of card output. Caller holds mu.
func (v *VirtualLink) next(n int) []byte {
	in := make([]byte, n)
	k := copy(in, v.queue)
	v.queue = v.queue[k:]
	for i := k; i < n; i++ {
		in[i] = 0xFF
	}
	return in
}

// begin logs the call and reports an injected failure. Caller holds mu.
func (v *VirtualLink) begin(kind ExchangeKind, out []byte) error {
	failing := v.failAfter >= 0 && len(v.log) >= v.failAfter
	v.log = append(v.log, Exchange{Kind: kind, Out: append([]byte(nil), out...)})
	if failing {
		return v.failErr
	}
	return nil
}

// Transfer implements sdmmc.Conn
func (v *VirtualLink) Transfer(w, r []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.begin(KindTransfer, w); err != nil {
		return err
	}
	in := v.next(len(w))
	copy(r, in)
	v.log[len(v.log)-1].In = in
	return nil
}

// Write implements sdmmc.Conn
func (v *VirtualLink) Write(w []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.begin(KindWrite, w); err != nil {
		return err
	}
	return nil
}

// TransferInPlace implements sdmmc.Conn
func (v *VirtualLink) TransferInPlace(buf []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.begin(KindInPlace, buf); err != nil {
		return err
	}
	in := v.next(len(buf))
	copy(buf, in)
	v.log[len(v.log)-1].In = in
	return nil
}
