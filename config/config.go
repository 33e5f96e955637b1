// Package config loads the daemon configuration file.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"gitlab.ubiant.me/go-shared/ble-sensors/registry"
)

// Settings backends
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendDbus   = "dbus"
)

// ErrInvalid is returned for a configuration that cannot run
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the daemon configuration
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Bus      BusConfig      `yaml:"bus"`
	Settings SettingsConfig `yaml:"settings"`
	Ticks    TicksConfig    `yaml:"ticks"`
	Registry RegistryConfig `yaml:"registry"`
	Scan     ScanConfig     `yaml:"scan"`
	HTTP     HTTPConfig     `yaml:"http"`
	Drivers  string         `yaml:"drivers_dir"`
}

// LogConfig selects the go-logging level
type LogConfig struct {
	Level string `yaml:"level"`
}

// BusConfig configures the D-Bus publication
type BusConfig struct {
	Enabled bool `yaml:"enabled"`
	// Address is "system", "session" or a bus address
	Address       string `yaml:"address"`
	ServicePrefix string `yaml:"service_prefix"`
	// ControlService is appended to ServicePrefix for the control tree
	ControlService string `yaml:"control_service"`
}

// SettingsConfig selects the settings store
type SettingsConfig struct {
	Backend string `yaml:"backend"`
	// Path is the badger directory
	Path string `yaml:"path"`
}

// TicksConfig holds the scheduler periods
type TicksConfig struct {
	PerSecond   int `yaml:"per_second"`
	ExpirySec   int `yaml:"expiry_seconds"`
	SweepSec    int `yaml:"sweep_seconds"`
	ScanRefresh int `yaml:"scan_refresh_seconds"`
}

// RegistryConfig bounds the registry
type RegistryConfig struct {
	MaxDevices int `yaml:"max_devices"`
}

// ScanConfig selects the frame source
type ScanConfig struct {
	// Replay is a file of recorded frames played instead of a radio
	Replay         string `yaml:"replay"`
	ReplayInterval int    `yaml:"replay_interval_ms"`
	// Interfaces maps adapter names to their addresses
	Interfaces map[string]string `yaml:"interfaces"`
}

// HTTPConfig configures the status server, empty Listen disables it
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used without file
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "INFO"},
		Bus: BusConfig{
			Enabled:        true,
			Address:        "system",
			ServicePrefix:  "com.victronenergy",
			ControlService: "ble",
		},
		Settings: SettingsConfig{
			Backend: BackendDbus,
			Path:    "/data/ble-sensors/settings",
		},
		Ticks: TicksConfig{
			PerSecond:   registry.TicksPerSecond,
			ExpirySec:   1800,
			SweepSec:    10,
			ScanRefresh: 60,
		},
		Registry: RegistryConfig{MaxDevices: 256},
		Scan:     ScanConfig{ReplayInterval: 100},
		HTTP:     HTTPConfig{Listen: "127.0.0.1:9641"},
		Drivers:  "/data/ble-sensors/drivers",
	}
}

// Load reads the YAML file at path over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Validate checks the values the daemon cannot run with
func (c *Config) Validate() error {
	switch c.Settings.Backend {
	case BackendMemory, BackendDbus:
	case BackendBadger:
		if c.Settings.Path == "" {
			return errors.Wrap(ErrInvalid, "badger backend without path")
		}
	default:
		return errors.Wrapf(ErrInvalid, "unknown settings backend %q", c.Settings.Backend)
	}
	if c.Settings.Backend == BackendDbus && !c.Bus.Enabled {
		return errors.Wrap(ErrInvalid, "dbus settings need the bus")
	}
	if c.Ticks.PerSecond <= 0 || c.Ticks.ExpirySec <= 0 || c.Ticks.SweepSec <= 0 {
		return errors.Wrap(ErrInvalid, "tick periods must be positive")
	}
	if c.Registry.MaxDevices < 0 {
		return errors.Wrap(ErrInvalid, "negative max_devices")
	}
	return nil
}

// RegistryConfig converts the tick periods to registry ticks
func (c *Config) RegistryConfig(version string) registry.Config {
	rc := registry.DefaultConfig()
	rc.ExpiryTicks = uint32(c.Ticks.ExpirySec * c.Ticks.PerSecond)
	rc.SweepTicks = uint32(c.Ticks.SweepSec * c.Ticks.PerSecond)
	rc.MaxDevices = c.Registry.MaxDevices
	rc.ServicePrefix = c.Bus.ServicePrefix
	rc.ProcessVersion = version
	return rc
}

// ControlName returns the bus name of the control tree
func (c *Config) ControlName() string {
	return c.Bus.ServicePrefix + "." + c.Bus.ControlService
}
