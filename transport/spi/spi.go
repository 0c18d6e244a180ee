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

// Package spi provides the SPI transport for SD/MMC cards
package spi

import (
	"encoding/binary"

	"github.com/ZaparooProject/go-sdmmc"
	"github.com/ZaparooProject/go-sdmmc/internal/frame"
	"lukechampine.com/uint128"
)

// Transport implements sdmmc.Transport over an exclusively owned duplex link.
//
// A Transport is not safe for concurrent use; it owns its link and is
// meant to be driven by a single card driver.
type Transport[C sdmmc.Conn] struct {
	conn        C
	flushCycles int
	released    bool
}

// Option configures a Transport
type Option func(*options)

type options struct {
	flushCycles int
}

// WithFlushCycles sets how many fill bytes Flush clocks out.
// Values below one keep sdmmc.DefaultFlushCycles.
func WithFlushCycles(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.flushCycles = n
		}
	}
}

// New creates a transport that takes ownership of conn
func New[C sdmmc.Conn](conn C, opts ...Option) *Transport[C] {
	o := options{flushCycles: sdmmc.DefaultFlushCycles}
	for _, opt := range opts {
		opt(&o)
	}
	return &Transport[C]{
		conn:        conn,
		flushCycles: o.flushCycles,
	}
}

// Borrow gives fn direct access to the link for the duration of the call,
// e.g. to change the bus clock once the card is initialized.
func (t *Transport[C]) Borrow(fn func(conn C) error) error {
	if t.released {
		return sdmmc.ErrReleased
	}
	return fn(t.conn)
}

// Release hands the link back to the caller. The transport cannot be used
// afterwards.
func (t *Transport[C]) Release() (C, error) {
	var zero C
	if t.released {
		return zero, sdmmc.ErrReleased
	}
	conn := t.conn
	t.conn = zero
	t.released = true
	return conn, nil
}

// FlushCycles returns the number of fill bytes clocked out by Flush
func (t *Transport[C]) FlushCycles() int {
	return t.flushCycles
}

// transferByte exchanges a single byte
func (t *Transport[C]) transferByte(b byte) (byte, error) {
	w := [1]byte{b}
	var r [1]byte
	if err := t.conn.Transfer(w[:], r[:]); err != nil {
		return 0, err //nolint:wrapcheck // link errors pass through untouched
	}
	return r[0], nil
}

// readResponse clocks len(r) fill bytes and captures the card's reply in r
func (t *Transport[C]) readResponse(r []byte) error {
	var fill [frame.SmallBufferSize]byte
	w := fill[:len(r)]
	frame.Fill(w)
	return t.conn.Transfer(w, r) //nolint:wrapcheck // link errors pass through untouched
}

// WriteCommand implements sdmmc.Transport
func (t *Transport[C]) WriteCommand(cmd byte, arg uint32) error {
	if t.released {
		return sdmmc.ErrReleased
	}
	f := frame.EncodeCommand(cmd, arg)
	return t.conn.Write(f[:]) //nolint:wrapcheck // link errors pass through untouched
}

// ReadResponseU8 implements sdmmc.Transport
func (t *Transport[C]) ReadResponseU8() (byte, error) {
	if t.released {
		return 0, sdmmc.ErrReleased
	}
	return t.transferByte(sdmmc.FillByte)
}

// ReadResponseU32 implements sdmmc.Transport
func (t *Transport[C]) ReadResponseU32() (uint32, error) {
	if t.released {
		return 0, sdmmc.ErrReleased
	}
	var r [4]byte
	if err := t.readResponse(r[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r[:]), nil
}

// ReadResponseU128 implements sdmmc.Transport
func (t *Transport[C]) ReadResponseU128() (uint128.Uint128, error) {
	if t.released {
		return uint128.Uint128{}, sdmmc.ErrReleased
	}
	var r [16]byte
	if err := t.readResponse(r[:]); err != nil {
		return uint128.Uint128{}, err
	}
	return uint128.New(binary.BigEndian.Uint64(r[8:]), binary.BigEndian.Uint64(r[:8])), nil
}

// WriteData implements sdmmc.Transport
func (t *Transport[C]) WriteData(buf []byte) error {
	if t.released {
		return sdmmc.ErrReleased
	}
	return t.conn.Write(buf) //nolint:wrapcheck // link errors pass through untouched
}

// ReadData implements sdmmc.Transport. Whatever buf held before is lost.
func (t *Transport[C]) ReadData(buf []byte) error {
	if t.released {
		return sdmmc.ErrReleased
	}
	frame.Fill(buf)
	return t.conn.TransferInPlace(buf) //nolint:wrapcheck // link errors pass through untouched
}

// Flush implements sdmmc.Transport.
//
// Clocks FlushCycles fill bytes one at a time, the same settle sequence
// SdFat and embedded-sdmmc use. This is not a card-protocol guarantee.
func (t *Transport[C]) Flush() error {
	if t.released {
		return sdmmc.ErrReleased
	}
	for range t.flushCycles {
		if _, err := t.transferByte(sdmmc.FillByte); err != nil {
			return err
		}
	}
	return nil
}

// IsBusy implements sdmmc.Transport
func (t *Transport[C]) IsBusy() (bool, error) {
	if t.released {
		return false, sdmmc.ErrReleased
	}
	b, err := t.transferByte(sdmmc.FillByte)
	if err != nil {
		return false, err
	}
	return b != sdmmc.FillByte, nil
}

var _ sdmmc.Transport = (*Transport[sdmmc.Conn])(nil)
