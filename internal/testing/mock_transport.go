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

package testing

import (
	"github.com/ZaparooProject/go-sdmmc"
	"github.com/ZaparooProject/go-sdmmc/internal/syncutil"
	"lukechampine.com/uint128"
)

// CommandLogEntry records a command written through MockTransport
type CommandLogEntry struct {
	Arg uint32
	Cmd byte
}

// MockTransport is an sdmmc.Transport that answers from canned values
// instead of a link. It is the second implementation of the interface and
// lets code above the transport be tested without frame-level scripting.
type MockTransport struct {
	errorMap map[string]error
	R128     uint128.Uint128
	Data     []byte
	Commands []CommandLogEntry
	Written  [][]byte
	calls    map[string]int
	busy     int
	Flushes  int
	R32      uint32
	mu       syncutil.Mutex
	R1       byte
}

// Operation names accepted by SetError and CallCount
const (
	OpWriteCommand = "WriteCommand"
	OpReadU8       = "ReadResponseU8"
	OpReadU32      = "ReadResponseU32"
	OpReadU128     = "ReadResponseU128"
	OpWriteData    = "WriteData"
	OpReadData     = "ReadData"
	OpFlush        = "Flush"
	OpIsBusy       = "IsBusy"
)

// NewMockTransport creates a mock with an idle card
func NewMockTransport() *MockTransport {
	return &MockTransport{
		errorMap: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// SetError makes op fail with err until ClearError is called
func (m *MockTransport) SetError(op string, err error) {
	m.mu.Lock()
	m.errorMap[op] = err
	m.mu.Unlock()
}

// ClearError removes error injection for op
func (m *MockTransport) ClearError(op string) {
	m.mu.Lock()
	delete(m.errorMap, op)
	m.mu.Unlock()
}

// SetBusy makes the next n IsBusy calls report busy
func (m *MockTransport) SetBusy(n int) {
	m.mu.Lock()
	m.busy = n
	m.mu.Unlock()
}

// CallCount returns how many times op was called
func (m *MockTransport) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockTransport) enter(op string) error {
	m.calls[op]++
	return m.errorMap[op]
}

// WriteCommand implements sdmmc.Transport
func (m *MockTransport) WriteCommand(cmd byte, arg uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpWriteCommand); err != nil {
		return err
	}
	m.Commands = append(m.Commands, CommandLogEntry{Cmd: cmd, Arg: arg})
	return nil
}

// ReadResponseU8 implements sdmmc.Transport
func (m *MockTransport) ReadResponseU8() (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpReadU8); err != nil {
		return 0, err
	}
	return m.R1, nil
}

// ReadResponseU32 implements sdmmc.Transport
func (m *MockTransport) ReadResponseU32() (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpReadU32); err != nil {
		return 0, err
	}
	return m.R32, nil
}

// ReadResponseU128 implements sdmmc.Transport
func (m *MockTransport) ReadResponseU128() (uint128.Uint128, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpReadU128); err != nil {
		return uint128.Uint128{}, err
	}
	return m.R128, nil
}

// WriteData implements sdmmc.Transport
func (m *MockTransport) WriteData(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpWriteData); err != nil {
		return err
	}
	m.Written = append(m.Written, append([]byte(nil), buf...))
	return nil
}

// ReadData implements sdmmc.Transport. Bytes beyond Data read as 0xFF.
func (m *MockTransport) ReadData(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpReadData); err != nil {
		return err
	}
	n := copy(buf, m.Data)
	for i := n; i < len(buf); i++ {
		buf[i] = sdmmc.FillByte
	}
	return nil
}

// Flush implements sdmmc.Transport
func (m *MockTransport) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpFlush); err != nil {
		return err
	}
	m.Flushes++
	return nil
}

// IsBusy implements sdmmc.Transport
func (m *MockTransport) IsBusy() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpIsBusy); err != nil {
		return false, err
	}
	if m.busy > 0 {
		m.busy--
		return true, nil
	}
	return false, nil
}

var _ sdmmc.Transport = (*MockTransport)(nil)
