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
	"context"
	"time"
)

// WaitReady polls t.IsBusy until the card releases the bus.
//
// It returns ctx.Err() when the context ends first and the transport error
// when a sample fails. An interval of zero polls back to back.
func WaitReady(ctx context.Context, t Transport, interval time.Duration) error {
	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		busy, err := t.IsBusy()
		if err != nil {
			return err //nolint:wrapcheck // transport errors are returned as-is
		}
		if !busy {
			return nil
		}

		if ticker == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
