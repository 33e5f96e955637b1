package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ble-sensors.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
log:
  level: DEBUG
settings:
  backend: badger
  path: /tmp/settings
ticks:
  expiry_seconds: 60
scan:
  interfaces:
    hci0: "00:11:22:33:44:55"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "DEBUG" || cfg.Settings.Backend != BackendBadger {
		t.Fatalf("loaded %+v", cfg)
	}
	if cfg.Ticks.SweepSec != 10 || cfg.Bus.ServicePrefix != "com.victronenergy" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Scan.Interfaces["hci0"] != "00:11:22:33:44:55" {
		t.Fatalf("interfaces = %v", cfg.Scan.Interfaces)
	}

	rc := cfg.RegistryConfig("1.0")
	if rc.ExpiryTicks != 60*20 || rc.SweepTicks != 10*20 || rc.ProcessVersion != "1.0" {
		t.Fatalf("registry config = %+v", rc)
	}
	if name := cfg.ControlName(); name != "com.victronenergy.ble" {
		t.Fatalf("control name = %s", name)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []string{
		"settings:\n  backend: sqlite\n",
		"settings:\n  backend: badger\n  path: \"\"\n",
		"bus:\n  enabled: false\n",
		"ticks:\n  per_second: 0\n",
	}
	for i, body := range cases {
		_, err := Load(writeConfig(t, body))
		if errors.Cause(err) != ErrInvalid {
			t.Fatalf("case %d: err = %v", i, err)
		}
	}

	if _, err := Load(writeConfig(t, "log: [")); err == nil {
		t.Fatal("bad yaml accepted")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
