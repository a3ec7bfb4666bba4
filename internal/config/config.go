// Package config loads and validates the bridge daemon configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML files can use "30s" style values.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type DriverConfig struct {
	// Kind selects the pulse driver: "mock" or "serial".
	Kind     string `toml:"kind"`
	Device   string `toml:"device"`
	BaudRate int    `toml:"baud_rate"`
}

type DiscoveryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Instance string `toml:"instance"`
}

type OpsConfig struct {
	ListenAddr  string   `toml:"listen_addr"`
	CorsOrigins []string `toml:"cors_origins"`

	// AuthToken, when set, is required as a bearer token on every ops
	// request. Empty leaves the ops surface open.
	AuthToken string `toml:"auth_token"`
}

type Config struct {
	ListenPort int `toml:"listen_port"`
	MaxLEDs    int `toml:"max_leds"`

	// LivenessInterval is the maximum keep-alive silence before the
	// service state is declared stale. Too short causes flapping, too
	// long delays failure detection.
	LivenessInterval Duration `toml:"liveness_interval"`

	// RecoveryDelay is how long the bridge sits in an error state before
	// an automatic recovery attempt.
	RecoveryDelay Duration `toml:"recovery_delay"`

	// LinkInterface names the network interface the hosted link monitor
	// watches; empty means the first non-loopback interface.
	LinkInterface string `toml:"link_interface"`

	// DebounceWindow coalesces chunked multi-packet updates into one
	// transmission when positive; zero flushes after every write.
	DebounceWindow Duration `toml:"debounce_window"`

	Driver    DriverConfig    `toml:"driver"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Ops       OpsConfig       `toml:"ops"`
}

func Default() Config {
	return Config{
		ListenPort:       23042,
		MaxLEDs:          1000,
		LivenessInterval: Duration{30 * time.Second},
		RecoveryDelay:    Duration{5 * time.Second},
		Driver:           DriverConfig{Kind: "mock", BaudRate: 3_000_000},
		Discovery:        DiscoveryConfig{Enabled: true, Instance: "luxbridge"},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if cfg.ListenPort <= 0 || cfg.ListenPort > 65535 {
		return fmt.Errorf("config: listen_port out of range: %d", cfg.ListenPort)
	}
	if cfg.MaxLEDs <= 0 {
		return fmt.Errorf("config: max_leds must be positive: %d", cfg.MaxLEDs)
	}
	if cfg.LivenessInterval.Duration <= 0 {
		return fmt.Errorf("config: liveness_interval must be positive")
	}
	if cfg.RecoveryDelay.Duration <= 0 {
		return fmt.Errorf("config: recovery_delay must be positive")
	}
	if cfg.DebounceWindow.Duration < 0 {
		return fmt.Errorf("config: debounce_window must not be negative")
	}
	switch strings.TrimSpace(cfg.Driver.Kind) {
	case "mock":
	case "serial":
		if strings.TrimSpace(cfg.Driver.Device) == "" {
			return fmt.Errorf("config: driver.device required for serial driver")
		}
		if cfg.Driver.BaudRate <= 0 {
			return fmt.Errorf("config: driver.baud_rate must be positive: %d", cfg.Driver.BaudRate)
		}
	default:
		return fmt.Errorf("config: unknown driver kind %q", cfg.Driver.Kind)
	}
	if cfg.Discovery.Enabled && strings.TrimSpace(cfg.Discovery.Instance) == "" {
		return fmt.Errorf("config: discovery.instance required when discovery is enabled")
	}
	return nil
}
