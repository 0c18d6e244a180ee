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
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-sdmmc"
	"github.com/ZaparooProject/go-sdmmc/internal/frame"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// DefaultFrequency is the identification-mode clock limit (400 kHz)
	DefaultFrequency = 400 * physic.KiloHertz
	// DefaultMode is SPI mode 0 (CPOL=0, CPHA=0) as required by SD cards
	DefaultMode = spi.Mode0
	// DefaultBitsPerWord is the only word size SD cards use
	DefaultBitsPerWord = 8
)

var errLengthMismatch = errors.New("write and read buffers differ in length")

// PeriphConn adapts a periph.io SPI connection to sdmmc.Conn.
// Exchanges larger than the driver's transfer limit are split into chunks
// with chip select held by the bus driver between them.
type PeriphConn struct {
	port     spi.PortCloser
	conn     spi.Conn
	portName string
	maxTx    int
}

// NewPeriphConn wraps an already connected periph SPI connection. port may
// be nil when the caller manages the port's lifetime.
func NewPeriphConn(port spi.PortCloser, c spi.Conn, portName string) *PeriphConn {
	maxTx := 0
	if l, ok := c.(conn.Limits); ok {
		maxTx = l.MaxTxSize()
	}
	return &PeriphConn{
		port:     port,
		conn:     c,
		portName: portName,
		maxTx:    maxTx,
	}
}

// OpenOption configures Open
type OpenOption func(*openConfig)

type openConfig struct {
	opts      []Option
	frequency physic.Frequency
	mode      spi.Mode
	bits      int
}

// WithFrequency sets the bus clock
func WithFrequency(f physic.Frequency) OpenOption {
	return func(c *openConfig) {
		c.frequency = f
	}
}

// WithMode sets the SPI mode
func WithMode(m spi.Mode) OpenOption {
	return func(c *openConfig) {
		c.mode = m
	}
}

// WithBitsPerWord sets the word size
func WithBitsPerWord(bits int) OpenOption {
	return func(c *openConfig) {
		c.bits = bits
	}
}

// WithTransportOptions passes options through to New
func WithTransportOptions(opts ...Option) OpenOption {
	return func(c *openConfig) {
		c.opts = append(c.opts, opts...)
	}
}

// Open initializes the periph host drivers, opens portName (for example
// "/dev/spidev0.0" or "SPI0.0") and returns a transport owning it.
// Release the transport and Close the returned link when done.
func Open(portName string, opts ...OpenOption) (*Transport[*PeriphConn], error) {
	cfg := openConfig{
		frequency: DefaultFrequency,
		mode:      DefaultMode,
		bits:      DefaultBitsPerWord,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	c, err := port.Connect(cfg.frequency, cfg.mode, cfg.bits)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	pc := NewPeriphConn(port, c, portName)
	sdmmc.Debugf("SPI %s connected at %s, mode %v, max transfer %d", portName, cfg.frequency, cfg.mode, pc.maxTx)

	return New(pc, cfg.opts...), nil
}

// String returns the port name
func (p *PeriphConn) String() string {
	return p.portName
}

// Transfer implements sdmmc.Conn
func (p *PeriphConn) Transfer(w, r []byte) error {
	if len(w) != len(r) {
		return fmt.Errorf("SPI transfer on %s: %w", p.portName, errLengthMismatch)
	}
	return p.tx(w, r)
}

// Write implements sdmmc.Conn
func (p *PeriphConn) Write(w []byte) error {
	return p.tx(w, nil)
}

// TransferInPlace implements sdmmc.Conn
func (p *PeriphConn) TransferInPlace(buf []byte) error {
	w := frame.GetBuffer(len(buf))
	defer frame.PutBuffer(w)
	copy(w, buf)
	return p.tx(w, buf)
}

// tx runs one or more Tx calls no larger than the driver limit.
// r is either nil or the same length as w.
func (p *PeriphConn) tx(w, r []byte) error {
	chunk := len(w)
	if p.maxTx > 0 && chunk > p.maxTx {
		chunk = p.maxTx
	}

	for off := 0; off < len(w); off += chunk {
		end := min(off+chunk, len(w))
		var rc []byte
		if r != nil {
			rc = r[off:end]
		}
		if err := p.conn.Tx(w[off:end], rc); err != nil {
			return fmt.Errorf("SPI transfer on %s failed: %w", p.portName, err)
		}
	}
	return nil
}

// Close closes the SPI port
func (p *PeriphConn) Close() error {
	if p.port == nil {
		return nil
	}
	if err := p.port.Close(); err != nil {
		return fmt.Errorf("SPI close failed: %w", err)
	}
	p.port = nil
	return nil
}

var _ sdmmc.Conn = (*PeriphConn)(nil)
