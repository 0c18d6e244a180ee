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

// Package detection finds buses an SD card may be attached to.
//
// Detection is passive: it lists candidate ports from configuration and
// the platform, and never talks to a card.
package detection

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZaparooProject/go-sdmmc/internal/syncutil"
)

// DeviceInfo represents a candidate card slot
type DeviceInfo struct {
	// Additional metadata (e.g., configured clock or chip select)
	Metadata map[string]string
	// Transport type, e.g. "spi"
	Transport string
	// Connection path (e.g., "/dev/spidev0.0" or "SPI0.0")
	Path string
	// Human-readable device name
	Name string
	// Source the entry came from: "config", "env" or "platform"
	Source string
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s device at %s (%s)", d.Transport, d.Path, d.Source)
}

// Options configures the detection behavior
type Options struct {
	// Device paths to explicitly ignore (e.g., ["/dev/spidev0.1"])
	IgnorePaths []string
	// Which transports to check (empty = all)
	Transports []string
	// Maximum time to wait for detection
	Timeout time.Duration
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		Timeout: 5 * time.Second,
	}
}

// Detector interface for transport-specific device detection
type Detector interface {
	// Detect searches for devices using the given options
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	// Transport returns the transport type this detector handles
	Transport() string
}

// Errors
var (
	// ErrNoDevicesFound indicates no candidate devices were found
	ErrNoDevicesFound = errors.New("no SD card devices found")
	// ErrDetectionTimeout indicates detection timed out
	ErrDetectionTimeout = errors.New("detection timeout")
	// ErrNoDetectors indicates no detector matched Options.Transports
	ErrNoDetectors = errors.New("no detectors available for specified transports")
)

var (
	registryMu syncutil.Mutex
	registry   []Detector
)

// RegisterDetector adds a detector to the registry
func RegisterDetector(d Detector) {
	registryMu.Lock()
	registry = append(registry, d)
	registryMu.Unlock()
}

// getDetectors returns detectors filtered by transport types
func getDetectors(transports []string) []Detector {
	registryMu.Lock()
	defer registryMu.Unlock()

	if len(transports) == 0 {
		return append([]Detector(nil), registry...)
	}

	var filtered []Detector
	for _, d := range registry {
		for _, t := range transports {
			if d.Transport() == t {
				filtered = append(filtered, d)
				break
			}
		}
	}
	return filtered
}

type detectionResult struct {
	err     error
	devices []DeviceInfo
}

// DetectAll runs every matching detector in parallel and merges the results.
// Devices are returned even when some detectors fail.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	detectors := getDetectors(opts.Transports)
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make(chan detectionResult, len(detectors))
	for _, detector := range detectors {
		go func(d Detector) {
			devices, err := d.Detect(ctx, opts)
			if err != nil && !errors.Is(err, ErrNoDevicesFound) {
				results <- detectionResult{err: err}
				return
			}
			results <- detectionResult{devices: devices}
		}(detector)
	}

	var allDevices []DeviceInfo
	var errs []error
	for range detectors {
		select {
		case res := <-results:
			if res.err != nil {
				errs = append(errs, res.err)
			} else {
				allDevices = append(allDevices, res.devices...)
			}
		case <-ctx.Done():
			return nil, ErrDetectionTimeout
		}
	}

	if len(allDevices) > 0 {
		return allDevices, nil
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return nil, ErrNoDevicesFound
}

// IsPathIgnored checks if a device path should be ignored.
// Paths are compared after cleaning and case folding.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" || len(ignorePaths) == 0 {
		return false
	}

	normalizedDevice := normalizedPath(devicePath)
	for _, ignorePath := range ignorePaths {
		if ignorePath == "" {
			continue
		}
		if devicePath == ignorePath || normalizedDevice == normalizedPath(ignorePath) {
			return true
		}
	}
	return false
}

func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
