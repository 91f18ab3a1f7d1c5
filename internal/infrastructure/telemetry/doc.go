// Package telemetry provides InfluxDB connectivity for cecbridge.
//
// It wraps the official influxdb-client-go v2 library as an event sink
// for activity observed on the HDMI-CEC bus.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Remote key presses relayed from the bus
//   - Power transitions and whether the target state was reached
//   - Adapter reconnect cycles
//   - Engine queue depths
//
// # Usage
//
//	cfg := config.TelemetryConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "home",
//	    Bucket:  "cec-events",
//	}
//
//	client, err := telemetry.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.RecordKeyPress("up", 0x01)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This keeps per-event overhead negligible on the engine's worker goroutine.
package telemetry
