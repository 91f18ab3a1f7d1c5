package config

import (
	"os"
	"path/filepath"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestLoad_ValidConfig(t *testing.T) {
	content := `
adapter:
  port: "/dev/ttyACM1"
  device_name: "living-room"
  hdmi_port: 2
  startup_delay: 3
engine:
  keymap: "tv"
  audio_device: "amp"
  on_start:
    - action: textviewon
      device: tv
    - action: makeactive
devices:
  tv:
    logical_address: 0
  amp:
    physical_address: "1.0.0.0"
    logical_address: 5
handlers:
  - opcode: STANDBY
    device: tv
    commands:
      - action: poweroff
        device: amp
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
database:
  enabled: true
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Adapter.Port != "/dev/ttyACM1" {
		t.Errorf("Adapter.Port = %q, want %q", cfg.Adapter.Port, "/dev/ttyACM1")
	}
	if cfg.Adapter.HDMIPort != 2 {
		t.Errorf("Adapter.HDMIPort = %d, want 2", cfg.Adapter.HDMIPort)
	}
	if cfg.Engine.Keymap != "tv" {
		t.Errorf("Engine.Keymap = %q, want %q", cfg.Engine.Keymap, "tv")
	}
	if len(cfg.Engine.OnStart) != 2 {
		t.Errorf("len(Engine.OnStart) = %d, want 2", len(cfg.Engine.OnStart))
	}
	amp, ok := cfg.Devices["amp"]
	if !ok {
		t.Fatal("devices.amp missing")
	}
	if amp.PhysicalAddress != "1.0.0.0" || amp.LogicalAddress == nil || *amp.LogicalAddress != 5 {
		t.Errorf("devices.amp = %+v, want physical 1.0.0.0 logical 5", amp)
	}
	if len(cfg.Handlers) != 1 || cfg.Handlers[0].Opcode != "STANDBY" {
		t.Errorf("Handlers = %+v, want one STANDBY handler", cfg.Handlers)
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
adapter:
  port: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty adapter.port, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing adapter port",
			mutate:  func(c *Config) { c.Adapter.Port = "" },
			wantErr: true,
		},
		{
			name:    "hdmi port out of range",
			mutate:  func(c *Config) { c.Adapter.HDMIPort = 16 },
			wantErr: true,
		},
		{
			name:    "negative startup delay",
			mutate:  func(c *Config) { c.Adapter.StartupDelay = -1 },
			wantErr: true,
		},
		{
			name:    "bad physical address override",
			mutate:  func(c *Config) { c.Adapter.PhysicalAddress = "1.2.3" },
			wantErr: true,
		},
		{
			name: "device without any address",
			mutate: func(c *Config) {
				c.Devices = map[string]DeviceConfig{"tv": {}}
			},
			wantErr: true,
		},
		{
			name: "device logical address out of range",
			mutate: func(c *Config) {
				c.Devices = map[string]DeviceConfig{"tv": {LogicalAddress: intPtr(16)}}
			},
			wantErr: true,
		},
		{
			name: "handler without opcode",
			mutate: func(c *Config) {
				c.Handlers = []HandlerConfig{{Device: "tv"}}
			},
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name: "registry enabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: true,
		},
		{
			name: "telemetry enabled without url",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Bucket = "events"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("CECBRIDGE_ADAPTER_PORT", "/dev/ttyUSB7")
	t.Setenv("CECBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("CECBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("CECBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("CECBRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("CECBRIDGE_TELEMETRY_TOKEN", "secret-token")
	t.Setenv("CECBRIDGE_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Adapter.Port != "/dev/ttyUSB7" {
		t.Errorf("Adapter.Port = %q, want %q", cfg.Adapter.Port, "/dev/ttyUSB7")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.Telemetry.Token != "secret-token" {
		t.Errorf("Telemetry.Token = %q, want %q", cfg.Telemetry.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Adapter.Port == "" {
		t.Error("defaultConfig should have non-empty Adapter.Port")
	}
	if cfg.Adapter.HDMIPort != 1 {
		t.Errorf("defaultConfig Adapter.HDMIPort = %d, want 1", cfg.Adapter.HDMIPort)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
}

func TestGetStartupDelay(t *testing.T) {
	cfg := &Config{Adapter: AdapterConfig{StartupDelay: 3}}
	if got := cfg.GetStartupDelay().Seconds(); got != 3 {
		t.Errorf("GetStartupDelay() = %v, want 3s", got)
	}
}
