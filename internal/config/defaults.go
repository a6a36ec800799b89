package config

import (
	"os"
	"path/filepath"
	"strings"

	"speech-transcriber/internal/domain"
)

// DeviceAuto lets the engine try the accelerated device before the CPU.
const DeviceAuto = "auto"

// DeviceCPU pins inference to the CPU, skipping the accelerated attempt.
const DeviceCPU = "cpu"

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelPath: filepath.Join(homeDir, ".speech-transcriber", "models"),
		Device:    DeviceAuto,
	}
}

// Normalize trims user inputs and applies the default device when empty or
// unrecognized.
func Normalize(settings domain.Settings) domain.Settings {
	settings.ModelPath = strings.TrimSpace(settings.ModelPath)
	switch strings.ToLower(strings.TrimSpace(settings.Device)) {
	case DeviceCPU:
		settings.Device = DeviceCPU
	default:
		settings.Device = DeviceAuto
	}
	return settings
}
