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

package spi

import (
	"bytes"
	"testing"

	"github.com/ZaparooProject/go-sdmmc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

type txCall struct {
	w []byte
	r []byte // nil when the caller did not want read data
}

// MockSPIConn implements spi.Conn. Every Tx reads back the bytes written,
// incremented by one, so tests can tell what came from the "card".
type MockSPIConn struct {
	err   error
	calls []txCall
	maxTx int
}

// Tx implements conn.Conn
//
//nolint:varnamelen // Interface compliance requires these parameter names
func (m *MockSPIConn) Tx(w, r []byte) error {
	if m.err != nil {
		return m.err
	}
	call := txCall{w: append([]byte(nil), w...)}
	if r != nil {
		for i := range r {
			r[i] = w[i] + 1
		}
		call.r = append([]byte(nil), r...)
	}
	m.calls = append(m.calls, call)
	return nil
}

// Duplex implements conn.Conn
func (*MockSPIConn) Duplex() conn.Duplex {
	return conn.Full
}

// String returns connection name
func (*MockSPIConn) String() string {
	return "mock://spi"
}

// TxPackets implements spi.Conn
func (m *MockSPIConn) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if err := m.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

// LimitedSPIConn adds a transfer size limit, like spidev's bufsiz
type LimitedSPIConn struct {
	MockSPIConn
}

// MaxTxSize implements conn.Limits
func (l *LimitedSPIConn) MaxTxSize() int {
	return l.maxTx
}

// MockSPIPort implements spi.PortCloser
type MockSPIPort struct {
	conn   spi.Conn
	closed bool
}

// Connect implements spi.Port
func (p *MockSPIPort) Connect(_ physic.Frequency, _ spi.Mode, _ int) (spi.Conn, error) {
	return p.conn, nil
}

// Close implements io.Closer
func (p *MockSPIPort) Close() error {
	p.closed = true
	return nil
}

// String returns port name
func (*MockSPIPort) String() string {
	return "mock://spi"
}

// LimitSpeed implements spi.Port
func (*MockSPIPort) LimitSpeed(_ physic.Frequency) error {
	return nil
}

var (
	_ spi.Conn       = (*MockSPIConn)(nil)
	_ spi.Conn       = (*LimitedSPIConn)(nil)
	_ conn.Limits    = (*LimitedSPIConn)(nil)
	_ spi.PortCloser = (*MockSPIPort)(nil)
)

func TestPeriphConn_Transfer(t *testing.T) {
	t.Parallel()
	mock := &MockSPIConn{}
	pc := NewPeriphConn(nil, mock, "mock")

	r := make([]byte, 3)
	require.NoError(t, pc.Transfer([]byte{0x10, 0x20, 0x30}, r))

	assert.Equal(t, []byte{0x11, 0x21, 0x31}, r)
	require.Len(t, mock.calls, 1)
}

func TestPeriphConn_TransferLengthMismatch(t *testing.T) {
	t.Parallel()
	mock := &MockSPIConn{}
	pc := NewPeriphConn(nil, mock, "mock")

	err := pc.Transfer([]byte{0x01, 0x02}, make([]byte, 1))
	require.ErrorIs(t, err, errLengthMismatch)
	assert.Empty(t, mock.calls)
}

func TestPeriphConn_WriteDiscardsReadData(t *testing.T) {
	t.Parallel()
	mock := &MockSPIConn{}
	pc := NewPeriphConn(nil, mock, "mock")

	require.NoError(t, pc.Write([]byte{0x40, 0x00, 0x00, 0x00, 0x00, 0x95}))

	require.Len(t, mock.calls, 1)
	assert.Nil(t, mock.calls[0].r)
}

func TestPeriphConn_TransferInPlace(t *testing.T) {
	t.Parallel()
	mock := &MockSPIConn{}
	pc := NewPeriphConn(nil, mock, "mock")

	buf := []byte{0xFF, 0xFF, 0x01}
	require.NoError(t, pc.TransferInPlace(buf))

	require.Len(t, mock.calls, 1)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x01}, mock.calls[0].w, "original contents are written")
	assert.Equal(t, []byte{0x00, 0x00, 0x02}, buf)
}

func TestPeriphConn_ChunksLargeTransfers(t *testing.T) {
	t.Parallel()
	limited := &LimitedSPIConn{MockSPIConn{maxTx: 4}}
	pc := NewPeriphConn(nil, limited, "mock")

	w := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	r := make([]byte, len(w))
	require.NoError(t, pc.Transfer(w, r))

	require.Len(t, limited.calls, 3)
	assert.Len(t, limited.calls[0].w, 4)
	assert.Len(t, limited.calls[1].w, 4)
	assert.Len(t, limited.calls[2].w, 2)
	assert.Equal(t, []byte{2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, r)
}

func TestPeriphConn_ErrorIsWrapped(t *testing.T) {
	t.Parallel()
	mock := &MockSPIConn{err: errBusFault}
	pc := NewPeriphConn(nil, mock, "mock")

	err := pc.Write([]byte{0x00})
	require.ErrorIs(t, err, errBusFault)
	assert.Contains(t, err.Error(), "mock")
}

func TestTransport_ReturnsPeriphConnErrorAsIs(t *testing.T) {
	t.Parallel()
	tracing := sdmmc.NewTracingConn(NewPeriphConn(nil, &MockSPIConn{err: errBusFault}, "mock"), "mock", 4)
	transport := New(tracing)

	err := transport.WriteCommand(0, 0)
	require.ErrorIs(t, err, errBusFault)

	entries := tracing.Trace().Entries()
	require.Len(t, entries, 2)
	assert.Same(t, entries[1].Err, err, "transport must not wrap the link error")
}

func TestPeriphConn_Close(t *testing.T) {
	t.Parallel()
	port := &MockSPIPort{conn: &MockSPIConn{}}
	c, err := port.Connect(DefaultFrequency, DefaultMode, DefaultBitsPerWord)
	require.NoError(t, err)
	pc := NewPeriphConn(port, c, "mock")

	require.NoError(t, pc.Close())
	assert.True(t, port.closed)
	require.NoError(t, pc.Close(), "second close is a no-op")

	require.NoError(t, NewPeriphConn(nil, c, "mock").Close())
}

func TestTransport_OverPeriphConn(t *testing.T) {
	t.Parallel()
	mock := &MockSPIConn{}
	transport := New(NewPeriphConn(nil, mock, "mock"))

	require.NoError(t, transport.WriteCommand(0, 0))
	buf := bytes.Repeat([]byte{0x00}, 4)
	require.NoError(t, transport.ReadData(buf))

	require.Len(t, mock.calls, 2)
	assert.Equal(t, []byte{0x40, 0x00, 0x00, 0x00, 0x00, 0x95}, mock.calls[0].w)
	assert.Equal(t, bytes.Repeat([]byte{sdmmc.FillByte}, 4), mock.calls[1].w)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, buf, "0xFF + 1 wraps to 0x00")
}
