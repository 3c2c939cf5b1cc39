package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LineKiosk.exe.config")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Telemetry.ReconnectDelaySeconds != 5 || cfg.Telemetry.WatchdogTimeoutSeconds != 10 {
		t.Errorf("telemetry defaults = %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.TrendDepth != 20 {
		t.Errorf("trend depth = %d", cfg.Telemetry.TrendDepth)
	}
	if !cfg.Layout.SaveRequiresLock {
		t.Error("save lock enforcement off by default")
	}

	// The default file was written for the operator to edit.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config not written: %v", err)
	}
}

func TestLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LineKiosk.exe.config")

	cfg := DefaultConfig()
	cfg.Server.Port = 9999
	cfg.Telemetry.SourceURL = "ws://plc-gateway:7001/feed"
	cfg.Layout.SaveRequiresLock = false
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Server.Port != 9999 {
		t.Errorf("port = %d", got.Server.Port)
	}
	if got.Telemetry.SourceURL != "ws://plc-gateway:7001/feed" {
		t.Errorf("source url = %q", got.Telemetry.SourceURL)
	}
	if got.Layout.SaveRequiresLock {
		t.Error("save lock enforcement not persisted")
	}
	if got.GetServerAddr() != "0.0.0.0:9999" {
		t.Errorf("addr = %q", got.GetServerAddr())
	}
}

func TestLoadConfigDataDirOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "LineKiosk.exe.config")
	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}

	t.Setenv("LINEKIOSK_DATA_DIR", "/var/lib/kiosk")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.DataDirectory != "/var/lib/kiosk" {
		t.Errorf("data dir = %q", cfg.Storage.DataDirectory)
	}
	if cfg.Layout.DocumentFile != filepath.Join("/var/lib/kiosk", "layout.json") {
		t.Errorf("document file = %q", cfg.Layout.DocumentFile)
	}
}
