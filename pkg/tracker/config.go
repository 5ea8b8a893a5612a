package tracker

import (
	"encoding/json"
	"os"
	"time"
)

const DefaultConfigFile = "helioctl.json"

// Config holds the controller configuration. Timeouts are in seconds, as
// the settings file stores them.
type Config struct {
	Port            string  `json:"port"`
	MovementTimeout float64 `json:"movement_timeout"`
	StallWindow     float64 `json:"stall_window"`
	InitialWait     float64 `json:"initial_wait"`
	SensorReport    bool    `json:"sensor_report"`
	SensorDefault   string  `json:"sensor_default"`
	DebugLogEnabled bool    `json:"debug_log_enabled"`
	DebugLogPath    string  `json:"debug_log_path,omitempty"`
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		MovementTimeout: 120.0,
		StallWindow:     3.0,
		InitialWait:     5.0,
		SensorDefault:   "0",
	}
}

// MovementTimeoutDuration returns the movement timeout as a duration.
func (c Config) MovementTimeoutDuration() time.Duration {
	return secondsToDuration(c.MovementTimeout)
}

// StallWindowDuration returns the stall window as a duration.
func (c Config) StallWindowDuration() time.Duration {
	return secondsToDuration(c.StallWindow)
}

// InitialWaitDuration returns the initial movement wait as a duration.
func (c Config) InitialWaitDuration() time.Duration {
	return secondsToDuration(c.InitialWait)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// LoadConfig loads configuration from the default config file.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file.
func LoadConfigFrom(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save saves configuration to the default config file.
func (c Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file.
func (c Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists.
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
