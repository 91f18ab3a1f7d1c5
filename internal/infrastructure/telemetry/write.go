package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RecordKeyPress records a remote key press observed on the bus.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - key: Symbolic key name (e.g., "up", "select")
//   - code: Raw user control code from the bus
func (c *Client) RecordKeyPress(key string, code int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"key_press",
		map[string]string{
			"key": key,
		},
		map[string]interface{}{
			"code": code,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordPowerEvent records a power transition issued to a bus device.
//
// Parameters:
//   - device: Configured device name (e.g., "tv", "amp")
//   - on: true for power on, false for standby
//   - reached: whether the device reported the target power state
//     within the polling window
func (c *Client) RecordPowerEvent(device string, on bool, reached bool) {
	if !c.IsConnected() {
		return
	}

	state := "standby"
	if on {
		state = "on"
	}

	point := write.NewPoint(
		"power_event",
		map[string]string{
			"device": device,
			"state":  state,
		},
		map[string]interface{}{
			"reached": reached,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordVolumeEvent records a volume step relayed to the audio device.
//
// Parameters:
//   - direction: "up" or "down"
func (c *Client) RecordVolumeEvent(direction string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"volume_event",
		map[string]string{
			"direction": direction,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordReconnect records an adapter reconnect cycle.
//
// Parameters:
//   - reason: What triggered the reconnect (e.g., "connection_lost", "manual")
//   - success: Whether the adapter came back up
func (c *Client) RecordReconnect(reason string, success bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"reconnect",
		map[string]string{
			"reason": reason,
		},
		map[string]interface{}{
			"success": success,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordQueueDepth records current engine queue depths.
//
// Useful for spotting a stalled worker or a runaway producer.
//
// Parameters:
//   - work: Depth of the main command queue
//   - exec: Depth of the reentrant queue used while a shell command runs
func (c *Client) RecordQueueDepth(work int, exec int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"queue_depth",
		map[string]string{},
		map[string]interface{}{
			"work": work,
			"exec": exec,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordPoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) RecordPoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
