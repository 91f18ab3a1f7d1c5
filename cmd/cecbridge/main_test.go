package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/cecbridge/internal/infrastructure/config"
)

func testContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("CECBRIDGE_CONFIG")
	defer os.Setenv("CECBRIDGE_CONFIG", originalEnv)

	os.Setenv("CECBRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := testContext(t)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("CECBRIDGE_CONFIG")
	defer os.Setenv("CECBRIDGE_CONFIG", originalEnv)

	os.Unsetenv("CECBRIDGE_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("CECBRIDGE_CONFIG")
	defer os.Setenv("CECBRIDGE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("CECBRIDGE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestBuildAdapterConfig(t *testing.T) {
	out, err := buildAdapterConfig(config.AdapterConfig{
		Port:            "/dev/ttyACM0",
		DeviceName:      "living-room",
		HDMIPort:        2,
		BaseDevice:      0,
		PhysicalAddress: "2.0.0.0",
	})
	if err != nil {
		t.Fatalf("buildAdapterConfig() error: %v", err)
	}
	if out.Port != "/dev/ttyACM0" || out.DeviceName != "living-room" || out.HDMIPort != 2 {
		t.Errorf("adapter config = %+v", out)
	}
	if out.PhysicalAddress.String() != "2.0.0.0" {
		t.Errorf("physical = %s, want 2.0.0.0", out.PhysicalAddress)
	}
}

func TestBuildAdapterConfigInvalidPhysical(t *testing.T) {
	_, err := buildAdapterConfig(config.AdapterConfig{PhysicalAddress: "bogus"})
	if err == nil {
		t.Error("buildAdapterConfig() expected error for invalid physical address")
	}
}

func TestEventSinkNil(t *testing.T) {
	if eventSink(nil) != nil {
		t.Error("eventSink(nil) should be a nil interface")
	}
}

func TestDeviceListerNil(t *testing.T) {
	if deviceLister(nil) != nil {
		t.Error("deviceLister(nil) should be a nil interface")
	}
}

// TestRun_MQTTUnreachable verifies run fails cleanly when the broker is
// down. Config is otherwise valid; database and telemetry stay disabled.
func TestRun_MQTTUnreachable(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
adapter:
  port: /dev/null
  device_name: test

mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "cecbridge-test"
    tls: false
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 5

database:
  enabled: false

telemetry:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("CECBRIDGE_CONFIG")
	defer os.Setenv("CECBRIDGE_CONFIG", originalEnv)
	os.Setenv("CECBRIDGE_CONFIG", configPath)

	ctx, cancel := testContext(t)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the broker is unreachable")
	}
}
