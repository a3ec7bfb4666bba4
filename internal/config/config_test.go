package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "luxbridge.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.ListenPort != 23042 {
		t.Fatalf("listen_port default: %d", cfg.ListenPort)
	}
	if cfg.MaxLEDs != 1000 {
		t.Fatalf("max_leds default: %d", cfg.MaxLEDs)
	}
	if cfg.LivenessInterval.Duration != 30*time.Second {
		t.Fatalf("liveness_interval default: %v", cfg.LivenessInterval)
	}
	if cfg.Driver.Kind != "mock" {
		t.Fatalf("driver default: %q", cfg.Driver.Kind)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen_port = 4242
max_leds = 60
liveness_interval = "5s"
debounce_window = "10ms"

[driver]
kind = "serial"
device = "/dev/ttyUSB0"
baud_rate = 3000000

[discovery]
enabled = true
instance = "workbench"

[ops]
listen_addr = ":9100"
cors_origins = ["http://localhost:3000"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenPort != 4242 || cfg.MaxLEDs != 60 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.LivenessInterval.Duration != 5*time.Second {
		t.Fatalf("liveness_interval: %v", cfg.LivenessInterval)
	}
	if cfg.DebounceWindow.Duration != 10*time.Millisecond {
		t.Fatalf("debounce_window: %v", cfg.DebounceWindow)
	}
	if cfg.Driver.Kind != "serial" || cfg.Driver.Device != "/dev/ttyUSB0" {
		t.Fatalf("driver: %+v", cfg.Driver)
	}
	if cfg.Discovery.Instance != "workbench" {
		t.Fatalf("discovery: %+v", cfg.Discovery)
	}
	if cfg.Ops.ListenAddr != ":9100" {
		t.Fatalf("ops: %+v", cfg.Ops)
	}
	// RecoveryDelay untouched by the file keeps its default.
	if cfg.RecoveryDelay.Duration != 5*time.Second {
		t.Fatalf("recovery_delay default lost: %v", cfg.RecoveryDelay)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero port", func(c *Config) { c.ListenPort = 0 }, "listen_port"},
		{"port too large", func(c *Config) { c.ListenPort = 70000 }, "listen_port"},
		{"zero leds", func(c *Config) { c.MaxLEDs = 0 }, "max_leds"},
		{"zero liveness", func(c *Config) { c.LivenessInterval = Duration{} }, "liveness_interval"},
		{"negative debounce", func(c *Config) { c.DebounceWindow = Duration{-time.Second} }, "debounce_window"},
		{"unknown driver", func(c *Config) { c.Driver.Kind = "gpio" }, "driver kind"},
		{"serial without device", func(c *Config) { c.Driver = DriverConfig{Kind: "serial", BaudRate: 9600} }, "driver.device"},
		{"discovery without instance", func(c *Config) { c.Discovery = DiscoveryConfig{Enabled: true} }, "discovery.instance"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestTemplateRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "luxbridge.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	// Refuses to clobber without force.
	if err := WriteTemplate(path, false); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("forced rewrite: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("template must load: %v", err)
	}
	def := Default()
	if cfg.ListenPort != def.ListenPort || cfg.MaxLEDs != def.MaxLEDs ||
		cfg.LivenessInterval != def.LivenessInterval ||
		cfg.RecoveryDelay != def.RecoveryDelay ||
		cfg.Driver != def.Driver || cfg.Discovery != def.Discovery {
		t.Fatalf("template drifted from defaults: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected load error for missing file")
	}
}
