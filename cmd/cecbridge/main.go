// cecbridge - HDMI-CEC to MQTT bridge daemon
//
// cecbridge owns a Pulse-Eight USB-CEC adapter and exposes the HDMI-CEC
// bus over MQTT: controllers publish commands and requests, the daemon
// relays remote key presses, volume steps, and device sightings back as
// events. A single worker goroutine drives the adapter through a
// command-queue engine; see internal/cec for the dispatch model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/cecbridge/internal/adapter/pulse8"
	"github.com/nerrad567/cecbridge/internal/bridge"
	"github.com/nerrad567/cecbridge/internal/cec"
	"github.com/nerrad567/cecbridge/internal/device"
	"github.com/nerrad567/cecbridge/internal/infrastructure/config"
	"github.com/nerrad567/cecbridge/internal/infrastructure/database"
	"github.com/nerrad567/cecbridge/internal/infrastructure/logging"
	"github.com/nerrad567/cecbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/cecbridge/internal/infrastructure/telemetry"
	"github.com/nerrad567/cecbridge/internal/keymap"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// engineStopTimeout bounds the wait for the worker to drain on shutdown.
const engineStopTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting cecbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and device registry (optional)
	var db *database.DB
	var registry *device.Registry
	if cfg.Database.Enabled {
		db, err = database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		repo, repoErr := device.NewSQLiteRepository(db.DB)
		if repoErr != nil {
			return fmt.Errorf("creating device repository: %w", repoErr)
		}
		registry = device.NewRegistry(repo, log)
		log.Info("device registry initialised")
	} else {
		log.Info("database disabled, device registry off")
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB telemetry (optional)
	var telemetryClient *telemetry.Client
	if cfg.Telemetry.Enabled {
		telemetryClient, err = telemetry.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to telemetry store: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		telemetryClient.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		log.Info("telemetry connected",
			"url", cfg.Telemetry.URL,
			"org", cfg.Telemetry.Org,
			"bucket", cfg.Telemetry.Bucket,
		)
	} else {
		log.Info("telemetry disabled")
	}

	// Build the shared translation tables from configuration
	devices, err := bridge.BuildDevices(cfg.Devices)
	if err != nil {
		return fmt.Errorf("building devices: %w", err)
	}
	keySet, activeKeys, err := bridge.BuildKeymaps(cfg.Keymaps)
	if err != nil {
		return fmt.Errorf("building keymaps: %w", err)
	}
	// engine.keymap overrides keymaps.active when set.
	if cfg.Engine.Keymap != "" {
		activeKeys = keySet.Select(cfg.Engine.Keymap)
	}
	builder := bridge.NewBuilder(devices, activeKeys)
	log.Info("key map selected", "map", activeKeys.Name())

	handlers, err := builder.BuildHandlerTable(cfg.Handlers)
	if err != nil {
		return fmt.Errorf("building handlers: %w", err)
	}

	// Create the bridge first; the engine options reference it as key
	// sink, menu runner, and device observer.
	br, err := bridge.New(bridge.Options{
		MQTT:     mqttClient,
		QoS:      byte(cfg.MQTT.QoS),
		Builder:  builder,
		Engine:   cfg.Engine,
		Menus:    cfg.Menus,
		Events:   eventSink(telemetryClient),
		Registry: deviceLister(registry),
		Logger:   log,
		Version:  version,
		LogLevel: cfg.Logging.Level,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	eng, err := startEngine(cfg, builder, activeKeys, handlers, br, registry, log)
	if err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer func() {
		log.Info("stopping engine")
		eng.Stop(engineStopTimeout)
	}()

	br.SetEngine(eng)
	if err := br.Start(); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		br.Stop()
	}()

	// Run the start-of-life command lists; deferred automatically until
	// the adapter connects.
	eng.Startup()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// startEngine builds and launches the CEC engine.
func startEngine(cfg *config.Config, builder *bridge.Builder, keys *keymap.Map, handlers cec.HandlerTable, br *bridge.Bridge, registry *device.Registry, log *logging.Logger) (*cec.Engine, error) {
	onStart, err := builder.BuildList(cfg.Engine.OnStart)
	if err != nil {
		return nil, fmt.Errorf("on_start: %w", err)
	}
	onStop, err := builder.BuildList(cfg.Engine.OnStop)
	if err != nil {
		return nil, fmt.Errorf("on_stop: %w", err)
	}
	onManualStart, err := builder.BuildList(cfg.Engine.OnManualStart)
	if err != nil {
		return nil, fmt.Errorf("on_manual_start: %w", err)
	}

	adapterCfg, err := buildAdapterConfig(cfg.Adapter)
	if err != nil {
		return nil, err
	}

	// The bridge publishes sightings; the registry persists them.
	var observer cec.DeviceObserver = br
	if registry != nil {
		observer = bridge.MultiObserver{registry, br}
	}

	eng, err := cec.New(cec.Options{
		Opener: func(acfg cec.AdapterConfig, cb cec.Callbacks) (cec.Adapter, error) {
			return pulse8.Open(acfg, cb, log)
		},
		Adapter:  adapterCfg,
		KeyMap:   keys,
		Keys:     br,
		Menus:    br,
		Handlers: handlers,
		Observer: observer,
		Logger:   log,

		StartupDelay:  cfg.GetStartupDelay(),
		OnStart:       onStart,
		OnStop:        onStop,
		OnManualStart: onManualStart,
		ManualStart:   cfg.Engine.ManualStart,
	})
	if err != nil {
		return nil, err
	}

	eng.Start()
	return eng, nil
}

// buildAdapterConfig converts adapter settings to the engine's types.
func buildAdapterConfig(ac config.AdapterConfig) (cec.AdapterConfig, error) {
	out := cec.AdapterConfig{
		Port:       ac.Port,
		DeviceName: ac.DeviceName,
		HDMIPort:   ac.HDMIPort,
		BaseDevice: cec.LogicalAddress(ac.BaseDevice),
	}
	if ac.PhysicalAddress != "" {
		p, err := cec.ParsePhysicalAddress(ac.PhysicalAddress)
		if err != nil {
			return cec.AdapterConfig{}, fmt.Errorf("adapter physical address: %w", err)
		}
		out.PhysicalAddress = p
	}
	return out, nil
}

// eventSink converts a possibly-nil telemetry client to the bridge
// interface without producing a non-nil interface around a nil pointer.
func eventSink(c *telemetry.Client) bridge.EventSink {
	if c == nil {
		return nil
	}
	return c
}

// deviceLister converts a possibly-nil registry to the bridge interface.
func deviceLister(r *device.Registry) bridge.DeviceLister {
	if r == nil {
		return nil
	}
	return r
}

// getConfigPath returns the configuration file path.
// Uses CECBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CECBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
