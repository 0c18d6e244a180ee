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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPool_Sizes(t *testing.T) {
	t.Parallel()
	pool := NewBufferPool()
	tests := []struct {
		name    string
		size    int
		wantCap int
	}{
		{name: "zero", size: 0, wantCap: SmallBufferSize},
		{name: "R1", size: 1, wantCap: SmallBufferSize},
		{name: "CSD", size: 16, wantCap: SmallBufferSize},
		{name: "block", size: 512, wantCap: BlockBufferSize},
		{name: "block packet", size: 515, wantCap: BlockBufferSize},
		{name: "multi block", size: 2048, wantCap: LargeBufferSize},
		{name: "oversized", size: 10000, wantCap: 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := pool.GetBuffer(tt.size)
			assert.Len(t, buf, tt.size)
			assert.Equal(t, tt.wantCap, cap(buf))
			pool.PutBuffer(buf)
		})
	}
}

func TestBufferPool_PutClears(t *testing.T) {
	t.Parallel()
	pool := NewBufferPool()

	buf := pool.GetBuffer(8)
	for i := range buf {
		buf[i] = 0xAB
	}
	pool.PutBuffer(buf)

	full := buf[:cap(buf)]
	for i, b := range full {
		assert.Zero(t, b, "byte %d not cleared", i)
	}
}

func TestBufferPool_PutForeignBuffer(t *testing.T) {
	t.Parallel()
	pool := NewBufferPool()

	pool.PutBuffer(nil)
	pool.PutBuffer(make([]byte, 3))

	buf := pool.GetBuffer(3)
	assert.Equal(t, SmallBufferSize, cap(buf), "foreign buffers are not pooled")
}

func FuzzBufferPool(f *testing.F) {
	f.Add(1)
	f.Add(16)
	f.Add(512)
	f.Add(4096)
	f.Add(0)
	f.Add(10000)

	f.Fuzz(func(t *testing.T, size int) {
		if size < 0 || size > 1_000_000 {
			return
		}

		buf := GetBuffer(size)
		if len(buf) != size {
			t.Fatalf("GetBuffer(%d) returned buffer of length %d", size, len(buf))
		}
		Fill(buf)
		PutBuffer(buf)
	})
}
