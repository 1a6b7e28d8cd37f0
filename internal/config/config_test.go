package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_MatchesBoardConstants(t *testing.T) {
	cfg := Default()

	if cfg.Capture.IntervalMS != 30_000 {
		t.Errorf("capture interval = %d, want 30000", cfg.Capture.IntervalMS)
	}
	if cfg.Upload.MaxAttempts != 3 {
		t.Errorf("upload max attempts = %d, want 3", cfg.Upload.MaxAttempts)
	}
	if cfg.Upload.BackoffSec != [3]int{60, 300, 1800} {
		t.Errorf("upload backoff = %v, want [60 300 1800]", cfg.Upload.BackoffSec)
	}
	if cfg.Retention.MinFreePercent != 15 || cfg.Retention.EmergencyFreePercent != 5 {
		t.Errorf("retention thresholds = %d/%d, want 15/5", cfg.Retention.MinFreePercent, cfg.Retention.EmergencyFreePercent)
	}
	if cfg.Telemetry.FirmwareVersion != "0.1.0" {
		t.Errorf("firmware version = %q, want 0.1.0", cfg.Telemetry.FirmwareVersion)
	}
	if cfg.Audio.HeartbeatIntervalMS != 5*60*1000 {
		t.Errorf("heartbeat interval = %d, want 300000", cfg.Audio.HeartbeatIntervalMS)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	yaml := `device_id: node-01
device_token: abc123
capture:
  interval_ms: 5000
network:
  wifi_ssids:
    - home-net
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DeviceID != "node-01" {
		t.Errorf("device_id = %q, want node-01", cfg.DeviceID)
	}
	if cfg.Capture.IntervalMS != 5000 {
		t.Errorf("capture interval overlay = %d, want 5000", cfg.Capture.IntervalMS)
	}
	// Untouched defaults should survive the overlay.
	if cfg.Upload.MaxAttempts != 3 {
		t.Errorf("upload max attempts should keep default, got %d", cfg.Upload.MaxAttempts)
	}
	if len(cfg.Network.WiFiSSIDs) != 1 || cfg.Network.WiFiSSIDs[0] != "home-net" {
		t.Errorf("wifi_ssids = %v, want [home-net]", cfg.Network.WiFiSSIDs)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{not yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("NODE_TOKEN", "secret-token")

	path := writeTemp(t, "device_token: ${NODE_TOKEN}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeviceToken != "secret-token" {
		t.Errorf("device_token = %q, want secret-token", cfg.DeviceToken)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()

	if cfg.Capture.Interval() != 30*time.Second {
		t.Errorf("Capture.Interval() = %v, want 30s", cfg.Capture.Interval())
	}
	backoff := cfg.Upload.Backoff()
	if len(backoff) != 3 || backoff[0] != 60*time.Second || backoff[2] != 30*time.Minute {
		t.Errorf("Upload.Backoff() = %v", backoff)
	}
	if cfg.Retention.Interval() != time.Hour {
		t.Errorf("Retention.Interval() = %v, want 1h", cfg.Retention.Interval())
	}
	if cfg.Audio.HeartbeatInterval() != 5*time.Minute {
		t.Errorf("Audio.HeartbeatInterval() = %v, want 5m", cfg.Audio.HeartbeatInterval())
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "device.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}
