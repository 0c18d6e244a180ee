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

// Package sdmmc is the byte-level transport layer of an SD/MMC card driver.
//
// It frames commands (start bits, big-endian argument, CRC7), reads
// fixed-width responses, moves raw data blocks, samples the busy line and
// clocks flush cycles, all on top of a full-duplex byte link.
//
// Basic usage with the SPI transport:
//
//	t, err := spi.Open("/dev/spidev0.0")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer func() {
//		if conn, err := t.Release(); err == nil {
//			_ = conn.Close()
//		}
//	}()
//
//	if err := t.Flush(); err != nil {
//		log.Fatal(err)
//	}
//	if err := t.WriteCommand(0, 0); err != nil {
//		log.Fatal(err)
//	}
//	r1, err := t.ReadResponseU8()
//
// Card initialization, block addressing and retries belong to the layer
// above and are not implemented here.
//
// # Debugging
//
// Set SDMMC_DEBUG=1 to print debug output, and wrap a link with
// NewTracingConn to record every exchange on the wire.
package sdmmc
