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

// Package frame builds SD/MMC command frames and pools exchange buffers.
package frame

import (
	"encoding/binary"

	"github.com/ZaparooProject/go-sdmmc"
)

// Command is a complete command frame as it goes on the wire
type Command [sdmmc.CommandFrameSize]byte

// EncodeCommand builds the frame for cmd and arg:
// [0x40|cmd, arg31..24, arg23..16, arg15..8, arg7..0, CRC7].
//
// cmd is OR-ed in as given; indices above 63 spill into the start bits.
func EncodeCommand(cmd byte, arg uint32) Command {
	var f Command
	f[0] = sdmmc.CommandStart | cmd
	binary.BigEndian.PutUint32(f[1:5], arg)
	f[5] = sdmmc.CRC7(f[:5])
	return f
}

// Index returns the command index carried in the frame
func (f Command) Index() byte {
	return f[0] & sdmmc.CommandIndexMask
}

// Argument returns the 32-bit argument carried in the frame
func (f Command) Argument() uint32 {
	return binary.BigEndian.Uint32(f[1:5])
}

// Valid reports whether the frame has the command start pattern and a
// matching checksum byte.
func (f Command) Valid() bool {
	return f[0]&^sdmmc.CommandIndexMask == sdmmc.CommandStart && f[5] == sdmmc.CRC7(f[:5])
}

// Fill sets every byte of buf to the bus idle level
func Fill(buf []byte) {
	for i := range buf {
		buf[i] = sdmmc.FillByte
	}
}
