package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for cecbridge.
// All configuration is loaded from YAML and can be overridden by
// environment variables.
type Config struct {
	Adapter   AdapterConfig           `yaml:"adapter"`
	Engine    EngineConfig            `yaml:"engine"`
	Devices   map[string]DeviceConfig `yaml:"devices"`
	Handlers  []HandlerConfig         `yaml:"handlers"`
	Menus     map[string]MenuConfig   `yaml:"menus"`
	Keymaps   KeymapsConfig           `yaml:"keymaps"`
	MQTT      MQTTConfig              `yaml:"mqtt"`
	Database  DatabaseConfig          `yaml:"database"`
	Telemetry TelemetryConfig         `yaml:"telemetry"`
	Logging   LoggingConfig           `yaml:"logging"`
}

// AdapterConfig contains CEC adapter connection settings.
type AdapterConfig struct {
	// Port is the serial device of the USB-CEC adapter.
	Port string `yaml:"port"`

	// DeviceName is the OSD name announced on the bus.
	DeviceName string `yaml:"device_name"`

	// HDMIPort is the TV input the host is attached to (1-15).
	HDMIPort int `yaml:"hdmi_port"`

	// BaseDevice is the logical address of the device the host is wired
	// to, normally 0 (the TV).
	BaseDevice int `yaml:"base_device"`

	// PhysicalAddress overrides topology autodetection when set.
	// Format: "a.b.c.d".
	PhysicalAddress string `yaml:"physical_address"`

	// StartupDelay postpones the initial connect attempt (seconds).
	StartupDelay int `yaml:"startup_delay"`
}

// EngineConfig contains command-queue engine settings and the command
// lists run at lifecycle points.
type EngineConfig struct {
	// ManualStart marks a user-initiated start; the on_manual_start list
	// runs before on_start.
	ManualStart bool `yaml:"manual_start"`

	// Keymap selects the active key translation map by name.
	Keymap string `yaml:"keymap"`

	OnStart          []CommandConfig `yaml:"on_start"`
	OnStop           []CommandConfig `yaml:"on_stop"`
	OnManualStart    []CommandConfig `yaml:"on_manual_start"`
	OnVolumeUp       []CommandConfig `yaml:"on_volume_up"`
	OnVolumeDown     []CommandConfig `yaml:"on_volume_down"`
	OnSwitchToTV     []CommandConfig `yaml:"on_switch_to_tv"`
	OnSwitchToRadio  []CommandConfig `yaml:"on_switch_to_radio"`
	OnSwitchToReplay []CommandConfig `yaml:"on_switch_to_replay"`

	// AudioDevice names the device that receives forwarded volume keys.
	AudioDevice string `yaml:"audio_device"`
}

// DeviceConfig describes one named bus device.
type DeviceConfig struct {
	// PhysicalAddress is the HDMI topology address ("a.b.c.d").
	PhysicalAddress string `yaml:"physical_address"`

	// LogicalAddress is the configured logical address (0-15), used as a
	// fallback when the physical address does not match. Nil means none.
	LogicalAddress *int `yaml:"logical_address"`
}

// CommandConfig is one entry in a configured command list.
type CommandConfig struct {
	// Action selects the command kind: poweron, poweroff, makeactive,
	// makeinactive, textviewon, keypress, hostkey, exec, toggle,
	// connect, disconnect, reconnect.
	Action string `yaml:"action"`

	// Device names the target device for actions that take one.
	Device string `yaml:"device"`

	// Key is the symbolic key name for keypress/hostkey actions.
	Key string `yaml:"key"`

	// Shell is the command line for exec actions.
	Shell string `yaml:"shell"`

	// Toggle sub-lists (toggle action only).
	OnPowerOn  []CommandConfig `yaml:"on_power_on"`
	OnPowerOff []CommandConfig `yaml:"on_power_off"`
}

// HandlerConfig maps an inbound bus opcode to a reaction.
type HandlerConfig struct {
	// Opcode is the symbolic opcode name (e.g. "STANDBY").
	Opcode string `yaml:"opcode"`

	// Device optionally filters on the sending device by name.
	Device string `yaml:"device"`

	ExecMenu string          `yaml:"exec_menu"`
	StopMenu string          `yaml:"stop_menu"`
	Commands []CommandConfig `yaml:"commands"`
}

// MenuConfig is a named menu: command lists run when the menu starts and
// stops, or a toggle pair keyed on the device's power status.
type MenuConfig struct {
	Device     string          `yaml:"device"`
	OnStart    []CommandConfig `yaml:"on_start"`
	OnStop     []CommandConfig `yaml:"on_stop"`
	OnPowerOn  []CommandConfig `yaml:"on_power_on"`
	OnPowerOff []CommandConfig `yaml:"on_power_off"`
}

// KeymapsConfig selects and extends key translation maps.
type KeymapsConfig struct {
	// Active names the map used by the engine. Empty means "default".
	Active string `yaml:"active"`

	// Maps defines named maps as binding overrides on the default map.
	Maps map[string][]KeyBindingConfig `yaml:"maps"`
}

// KeyBindingConfig rebinds one CEC user-control code.
type KeyBindingConfig struct {
	// Code is the CEC user-control code being bound.
	Code int `yaml:"code"`

	// Keys are the host keys the code expands to, in order.
	Keys []string `yaml:"keys"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite device-registry settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// TelemetryConfig contains InfluxDB event-sink settings.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern CECBRIDGE_SECTION_KEY,
// for example CECBRIDGE_ADAPTER_PORT or CECBRIDGE_MQTT_HOST.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Adapter: AdapterConfig{
			Port:       "/dev/ttyACM0",
			DeviceName: "cecbridge",
			HDMIPort:   1,
			BaseDevice: 0,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "cecbridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/cecbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CECBRIDGE_ADAPTER_PORT"); v != "" {
		cfg.Adapter.Port = v
	}
	if v := os.Getenv("CECBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CECBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CECBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("CECBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CECBRIDGE_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
	if v := os.Getenv("CECBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Adapter.Port == "" {
		errs = append(errs, "adapter.port is required")
	}
	if c.Adapter.HDMIPort < 1 || c.Adapter.HDMIPort > 15 {
		errs = append(errs, "adapter.hdmi_port must be between 1 and 15")
	}
	if c.Adapter.BaseDevice < 0 || c.Adapter.BaseDevice > 15 {
		errs = append(errs, "adapter.base_device must be between 0 and 15")
	}
	if c.Adapter.StartupDelay < 0 {
		errs = append(errs, "adapter.startup_delay must not be negative")
	}
	if c.Adapter.PhysicalAddress != "" {
		if err := validateDottedAddress(c.Adapter.PhysicalAddress); err != nil {
			errs = append(errs, fmt.Sprintf("adapter.physical_address: %v", err))
		}
	}

	for name, dev := range c.Devices {
		if dev.PhysicalAddress == "" && dev.LogicalAddress == nil {
			errs = append(errs, fmt.Sprintf("devices.%s: physical_address or logical_address is required", name))
			continue
		}
		if dev.PhysicalAddress != "" {
			if err := validateDottedAddress(dev.PhysicalAddress); err != nil {
				errs = append(errs, fmt.Sprintf("devices.%s.physical_address: %v", name, err))
			}
		}
		if dev.LogicalAddress != nil && (*dev.LogicalAddress < 0 || *dev.LogicalAddress > 15) {
			errs = append(errs, fmt.Sprintf("devices.%s.logical_address must be between 0 and 15", name))
		}
	}

	for i, h := range c.Handlers {
		if h.Opcode == "" {
			errs = append(errs, fmt.Sprintf("handlers[%d].opcode is required", i))
		}
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the registry is enabled")
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.URL == "" {
			errs = append(errs, "telemetry.url is required when telemetry is enabled")
		}
		if c.Telemetry.Bucket == "" {
			errs = append(errs, "telemetry.bucket is required when telemetry is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateDottedAddress checks the "a.b.c.d" physical address form.
func validateDottedAddress(s string) error {
	var a, b, c, d uint8
	if _, err := fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b, &c, &d); err != nil {
		return fmt.Errorf("invalid address %q", s)
	}
	if a > 15 || b > 15 || c > 15 || d > 15 {
		return fmt.Errorf("invalid address %q: segment out of range", s)
	}
	return nil
}

// GetStartupDelay returns the adapter startup delay as a Duration.
func (c *Config) GetStartupDelay() time.Duration {
	return time.Duration(c.Adapter.StartupDelay) * time.Second
}

// GetFlushInterval returns the telemetry flush interval as a Duration.
func (c *Config) GetFlushInterval() time.Duration {
	return time.Duration(c.Telemetry.FlushInterval) * time.Second
}
