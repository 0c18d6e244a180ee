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

// Package spi lists SPI ports an SD card may be wired to
package spi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZaparooProject/go-sdmmc"
	"github.com/ZaparooProject/go-sdmmc/detection"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Environment variables read by the detector
const (
	EnvDevice    = "SDMMC_SPI_DEVICE"
	EnvFrequency = "SDMMC_SPI_FREQUENCY"
)

// Config represents SPI slot configuration
type Config struct {
	// Additional metadata
	Metadata map[string]string `json:"metadata,omitempty"`
	// Device path (e.g., "/dev/spidev0.0")
	Device string `json:"device"`
	// Human-readable name
	Name string `json:"name,omitempty"`
	// Bus clock once the card is initialized (e.g., "25MHz")
	Frequency string `json:"frequency,omitempty"`
}

// Lookup hooks, replaced in tests
var (
	configPaths = defaultConfigPaths
	listPorts   = periphPorts
)

// detector implements the Detector interface for SPI ports
type detector struct{}

// New creates a new SPI detector
func New() detection.Detector {
	return &detector{}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "spi"
}

// Detect lists configured and platform SPI ports
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	var devices []detection.DeviceInfo
	seen := make(map[string]bool)

	for _, config := range gatherConfigs() {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		if config.Device == "" || seen[config.Device] {
			continue
		}
		seen[config.Device] = true

		if detection.IsPathIgnored(config.Device, opts.IgnorePaths) {
			continue
		}
		devices = append(devices, createDeviceInfo(config))
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

type sourcedConfig struct {
	Config
	source string
}

// gatherConfigs collects configurations in priority order:
// config file, environment, platform ports
func gatherConfigs() []sourcedConfig {
	var configs []sourcedConfig
	for _, c := range loadConfigFile() {
		configs = append(configs, sourcedConfig{Config: c, source: "config"})
	}
	if c := loadEnvConfig(); c != nil {
		configs = append(configs, sourcedConfig{Config: *c, source: "env"})
	}
	for _, c := range listPorts() {
		configs = append(configs, sourcedConfig{Config: c, source: "platform"})
	}
	return configs
}

// createDeviceInfo creates a DeviceInfo from a Config
func createDeviceInfo(config sourcedConfig) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport: "spi",
		Path:      config.Device,
		Name:      config.Name,
		Source:    config.source,
		Metadata:  make(map[string]string, len(config.Metadata)+1),
	}
	for k, v := range config.Metadata {
		device.Metadata[k] = v
	}
	if config.Frequency != "" {
		device.Metadata["frequency"] = config.Frequency
	}
	if device.Name == "" {
		device.Name = "SPI device at " + config.Device
	}
	return device
}

func defaultConfigPaths() []string {
	return []string{
		"sdmmc-spi.json",
		".sdmmc-spi.json",
		filepath.Join(os.Getenv("HOME"), ".config", "sdmmc", "spi.json"),
		"/etc/sdmmc/spi.json",
	}
}

// loadConfigFile loads configurations from the first readable JSON file.
// A file may hold a single object or an array of them.
func loadConfigFile() []Config {
	for _, path := range configPaths() {
		// #nosec G304 -- paths are fixed above, not user input
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var configs []Config
		if err := json.Unmarshal(data, &configs); err == nil {
			return configs
		}

		var config Config
		if err := json.Unmarshal(data, &config); err == nil {
			return []Config{config}
		}
		sdmmc.Debugf("ignoring malformed SPI config %s", path)
	}
	return nil
}

// loadEnvConfig loads configuration from environment variables
func loadEnvConfig() *Config {
	device := os.Getenv(EnvDevice)
	if device == "" {
		return nil
	}
	return &Config{
		Device:    device,
		Name:      "SPI device from environment",
		Frequency: os.Getenv(EnvFrequency),
	}
}

// periphPorts lists the SPI ports registered by periph host drivers
func periphPorts() []Config {
	if _, err := host.Init(); err != nil {
		sdmmc.Debugf("periph host init failed: %v", err)
		return nil
	}

	var configs []Config
	for _, ref := range spireg.All() {
		config := Config{
			Device: ref.Name,
			Name:   fmt.Sprintf("SPI port %s", ref.Name),
		}
		if len(ref.Aliases) > 0 {
			config.Metadata = map[string]string{"alias": ref.Aliases[0]}
		}
		configs = append(configs, config)
	}
	return configs
}
