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

package frame

import "sync"

// BufferPool manages reusable byte slices for the exchange sizes seen on an
// SD bus: short responses, single blocks and full driver-sized transfers.
type BufferPool struct {
	smallPool sync.Pool
	blockPool sync.Pool
	largePool sync.Pool
}

// Size thresholds for buffer categories
const (
	SmallBufferSize = 16   // responses up to R2 (CSD/CID)
	BlockBufferSize = 516  // 512-byte block plus token and CRC16
	LargeBufferSize = 4096 // default spidev transfer limit
)

// Global buffer pool instance
var defaultPool = NewBufferPool()

func newSizedPool(size int) sync.Pool {
	return sync.Pool{
		New: func() any {
			buf := make([]byte, size)
			return &buf
		},
	}
}

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	return &BufferPool{
		smallPool: newSizedPool(SmallBufferSize),
		blockPool: newSizedPool(BlockBufferSize),
		largePool: newSizedPool(LargeBufferSize),
	}
}

// GetBuffer returns a buffer of exactly size bytes.
// The returned buffer should be handed back via PutBuffer when done.
func (p *BufferPool) GetBuffer(size int) []byte {
	var pool *sync.Pool
	switch {
	case size <= SmallBufferSize:
		pool = &p.smallPool
	case size <= BlockBufferSize:
		pool = &p.blockPool
	case size <= LargeBufferSize:
		pool = &p.largePool
	default:
		// Oversized requests bypass the pool
		return make([]byte, size)
	}

	bufPtr, ok := pool.Get().(*[]byte)
	if !ok {
		return make([]byte, size)
	}
	return (*bufPtr)[:size]
}

// PutBuffer returns a buffer to the pool for reuse.
// The buffer must not be used after calling this function.
func (p *BufferPool) PutBuffer(buf []byte) {
	if buf == nil {
		return
	}

	full := buf[:cap(buf)]
	clear(full)

	switch cap(buf) {
	case SmallBufferSize:
		p.smallPool.Put(&full)
	case BlockBufferSize:
		p.blockPool.Put(&full)
	case LargeBufferSize:
		p.largePool.Put(&full)
	default:
		// Not from the pool, let GC handle it
	}
}

// GetBuffer acquires a buffer from the default pool
func GetBuffer(size int) []byte {
	return defaultPool.GetBuffer(size)
}

// PutBuffer returns a buffer to the default pool
func PutBuffer(buf []byte) {
	defaultPool.PutBuffer(buf)
}
