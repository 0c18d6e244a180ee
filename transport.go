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

package sdmmc

import (
	"errors"

	"lukechampine.com/uint128"
)

// Wire constants shared by every transport
const (
	// CommandStart is OR-ed into the command index to form the first frame
	// byte (start bit 0, transmission bit 1).
	CommandStart = 0x40
	// CommandIndexMask keeps the six command index bits.
	CommandIndexMask = 0x3F
	// CommandFrameSize is the length of a command frame on the wire.
	CommandFrameSize = 6
	// FillByte is driven on the bus whenever the host only wants to listen.
	FillByte = 0xFF
	// DefaultFlushCycles is the number of fill bytes clocked out by Flush.
	DefaultFlushCycles = 255
)

// ErrReleased is returned by a transport whose link has been handed back
// to the caller.
var ErrReleased = errors.New("transport link released")

// Transport is the set of primitive card operations the card protocol layer
// builds on. Implementations add no retries, locking or timing of their own;
// errors from the underlying link are returned unchanged.
type Transport interface {
	// WriteCommand sends the 6-byte frame for cmd and arg. No response is read.
	WriteCommand(cmd byte, arg uint32) error

	// ReadResponseU8 reads a one-byte response (R1).
	ReadResponseU8() (byte, error)

	// ReadResponseU32 reads a four-byte big-endian response.
	ReadResponseU32() (uint32, error)

	// ReadResponseU128 reads a sixteen-byte big-endian response (CSD, CID).
	ReadResponseU128() (uint128.Uint128, error)

	// WriteData writes buf verbatim.
	WriteData(buf []byte) error

	// ReadData overwrites buf with bytes clocked in from the card.
	ReadData(buf []byte) error

	// Flush clocks out fill bytes so the card can finish pending work.
	Flush() error

	// IsBusy samples one byte and reports whether the card holds the bus.
	IsBusy() (bool, error)
}

// Conn is a synchronous full-duplex byte link, such as an SPI device with
// chip select handled by the bus driver.
type Conn interface {
	// Transfer writes w while reading len(w) bytes into r.
	Transfer(w, r []byte) error

	// Write writes w and discards whatever is read back.
	Write(w []byte) error

	// TransferInPlace writes buf and replaces its contents with the bytes read.
	TransferInPlace(buf []byte) error
}
