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
	"io"
	"os"
	"strings"
)

// debugEnabled controls whether debug output goes to the console
var debugEnabled = false

func init() {
	if os.Getenv("SDMMC_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// console is where enabled debug output is printed
var console io.Writer = os.Stdout

// Debugf prints debug information.
// Always writes to the session log (if initialized) with a timestamp.
// Only prints to the console when debug mode is enabled.
func Debugf(format string, args ...any) {
	emit(fmt.Sprintf(format, args...))
}

// Debugln is like Debugf but formats its arguments like fmt.Println,
// always separated by spaces.
func Debugln(args ...any) {
	emit(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

func emit(message string) {
	writeSessionLine("DEBUG: " + message)

	if debugEnabled {
		_, _ = fmt.Fprintf(console, "DEBUG: %s\n", message)
	}
}

// SetDebugEnabled allows programmatic control of debug logging
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugEnabled reports whether console debug output is on
func DebugEnabled() bool {
	return debugEnabled
}
