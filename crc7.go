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

// crc7Poly is x^7 + x^3 + 1 without the x^7 term
const crc7Poly = 0x09

// CRC7 computes the SD/MMC command checksum over data.
//
// The result is the byte as it goes on the wire: the 7-bit remainder in
// bits 7..1 and the end bit (bit 0) set, so CRC7 of a CMD0 frame header
// (40 00 00 00 00) is 0x95.
func CRC7(data []byte) byte {
	var crc byte
	for _, b := range data {
		for range 8 {
			crc <<= 1
			if (b^crc)&0x80 != 0 {
				crc ^= crc7Poly
			}
			b <<= 1
		}
	}
	return crc<<1 | 1
}
