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
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-sdmmc/internal/syncutil"
)

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates data sent to the card
	TraceTX TraceDirection = "TX"
	// TraceRX indicates data received from the card
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single wire-level operation
type TraceEntry struct {
	Timestamp time.Time
	Err       error
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	line := fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, formatHexBytes(e.Data))
	if e.Note != "" {
		line += " (" + e.Note + ")"
	}
	if e.Err != nil {
		line += " error: " + e.Err.Error()
	}
	return line
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	shown := data
	if len(data) > 32 {
		shown = data[:32]
	}
	parts := make([]string, len(shown))
	for i, b := range shown {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	out := strings.Join(parts, " ")
	if len(data) > len(shown) {
		out += fmt.Sprintf(" ... (%d bytes total)", len(data))
	}
	return out
}

// TraceBuffer keeps the most recent trace entries in a bounded ring.
type TraceBuffer struct {
	entries []TraceEntry
	maxSize int
	mu      syncutil.Mutex
}

// NewTraceBuffer creates a trace buffer holding at most maxSize entries
func NewTraceBuffer(maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &TraceBuffer{
		entries: make([]TraceEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// RecordTX records bytes sent to the card
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note, nil)
}

// RecordRX records bytes received from the card
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note, nil)
}

// RecordError records a failed exchange
func (tb *TraceBuffer) RecordError(err error, note string) {
	tb.record(TraceRX, nil, note, err)
}

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string, err error) {
	entry := TraceEntry{
		Timestamp: time.Now(),
		Direction: dir,
		Note:      note,
		Data:      append([]byte(nil), data...),
		Err:       err,
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
		return
	}
	tb.entries = append(tb.entries, entry)
}

// Entries returns a copy of the recorded entries, oldest first
func (tb *TraceBuffer) Entries() []TraceEntry {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return append([]TraceEntry(nil), tb.entries...)
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.mu.Lock()
	tb.entries = tb.entries[:0]
	tb.mu.Unlock()
}

// FormatTrace returns a human-readable trace log
func (tb *TraceBuffer) FormatTrace() string {
	entries := tb.Entries()
	if len(entries) == 0 {
		return "(no trace data)"
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "Wire trace (%d entries):\n", len(entries))
	for _, entry := range entries {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		_, _ = fmt.Fprintf(&sb, "  %s %s", direction, formatHexBytes(entry.Data))
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, " (%s)", entry.Note)
		}
		if entry.Err != nil {
			_, _ = fmt.Fprintf(&sb, " error: %v", entry.Err)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// TracingConn wraps a Conn and records every exchange. Errors from the
// wrapped link are returned as they are.
type TracingConn struct {
	conn  Conn
	trace *TraceBuffer
	name  string
}

// NewTracingConn wraps conn, keeping the last size exchanges under name.
func NewTracingConn(conn Conn, name string, size int) *TracingConn {
	return &TracingConn{
		conn:  conn,
		trace: NewTraceBuffer(size),
		name:  name,
	}
}

// Trace returns the buffer the exchanges are recorded in
func (c *TracingConn) Trace() *TraceBuffer {
	return c.trace
}

// Unwrap returns the wrapped link
func (c *TracingConn) Unwrap() Conn {
	return c.conn
}

// Transfer implements Conn
func (c *TracingConn) Transfer(w, r []byte) error {
	c.trace.RecordTX(w, "transfer")
	if err := c.conn.Transfer(w, r); err != nil {
		c.fail(err, "transfer")
		return err //nolint:wrapcheck // link errors pass through untouched
	}
	c.trace.RecordRX(r, "transfer")
	Debugf("%s: transfer > %s < %s", c.name, formatHexBytes(w), formatHexBytes(r))
	return nil
}

// Write implements Conn
func (c *TracingConn) Write(w []byte) error {
	c.trace.RecordTX(w, "write")
	if err := c.conn.Write(w); err != nil {
		c.fail(err, "write")
		return err //nolint:wrapcheck // link errors pass through untouched
	}
	Debugf("%s: write > %s", c.name, formatHexBytes(w))
	return nil
}

// TransferInPlace implements Conn
func (c *TracingConn) TransferInPlace(buf []byte) error {
	c.trace.RecordTX(buf, "transfer in place")
	if err := c.conn.TransferInPlace(buf); err != nil {
		c.fail(err, "transfer in place")
		return err //nolint:wrapcheck // link errors pass through untouched
	}
	c.trace.RecordRX(buf, "transfer in place")
	Debugf("%s: transfer in place < %s", c.name, formatHexBytes(buf))
	return nil
}

func (c *TracingConn) fail(err error, op string) {
	c.trace.RecordError(err, op)
	Debugf("%s: %s failed: %v", c.name, op, err)
}
