package bridge

import (
	"fmt"
	"time"
)

// MQTT message types exchanged between cecbridge and controllers.

// CommandMessage is a fire-and-forget command from a controller.
// Topic: cecbridge/command
type CommandMessage struct {
	// ID optionally identifies this command in logs.
	ID string `json:"id,omitempty"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Action selects the operation. Either an engine action (poweron,
	// poweroff, makeactive, makeinactive, textviewon, keypress, hostkey,
	// exec, connect, disconnect, reconnect, startup) or a bridge action
	// (menu, menu_stop, volume_up, volume_down, switch_tv, switch_radio,
	// switch_replay).
	Action string `json:"action"`

	// Device names the target device for actions that take one.
	Device string `json:"device,omitempty"`

	// Key is the symbolic key name for keypress/hostkey actions.
	Key string `json:"key,omitempty"`

	// Menu names the target menu for menu/menu_stop actions.
	Menu string `json:"menu,omitempty"`

	// Shell is the command line for exec actions.
	Shell string `json:"shell,omitempty"`

	// Source indicates where the command originated (e.g. "panel", "cli").
	Source string `json:"source,omitempty"`
}

// RequestMessage is a request/response query from a controller.
// Topic: cecbridge/request
type RequestMessage struct {
	// RequestID correlates the response. Generated if absent.
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is when the request was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Action is the requested operation.
	// Values: "status", "devices", "ping"
	Action string `json:"action"`
}

// ResponseMessage answers a request.
// Topic: cecbridge/response/{request_id}
type ResponseMessage struct {
	// RequestID is the ID from the original request.
	RequestID string `json:"request_id"`

	// Timestamp is when the response was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Success indicates whether the request succeeded.
	Success bool `json:"success"`

	// Data contains the response payload (if successful).
	Data map[string]any `json:"data,omitempty"`

	// Error is a human-readable description (if failed).
	Error string `json:"error,omitempty"`
}

// KeyEventMessage reports a remote key press relayed from the bus.
// Topic: cecbridge/event/key
type KeyEventMessage struct {
	Timestamp time.Time `json:"timestamp"`

	// Key is the symbolic host key name (e.g. "up", "select").
	Key string `json:"key"`

	// Code is the numeric host key identifier.
	Code int `json:"code"`
}

// VolumeEventMessage reports a volume step relayed to the audio device.
// Topic: cecbridge/event/volume
type VolumeEventMessage struct {
	Timestamp time.Time `json:"timestamp"`

	// Direction is "up" or "down".
	Direction string `json:"direction"`
}

// ModeEventMessage reports a source mode change.
// Topic: cecbridge/event/mode
type ModeEventMessage struct {
	Timestamp time.Time `json:"timestamp"`

	// Mode is "tv", "radio" or "replay".
	Mode string `json:"mode"`
}

// DeviceEventMessage announces a device sighted during a bus scan.
// Topic: cecbridge/event/device
type DeviceEventMessage struct {
	Timestamp time.Time `json:"timestamp"`

	// Logical is the bus logical address (0-15).
	Logical int `json:"logical"`

	// Physical is the dotted physical address.
	Physical string `json:"physical"`

	// Name is the announced OSD name, if any.
	Name string `json:"name,omitempty"`

	// Vendor is the 24-bit IEEE vendor identifier, 0 when unknown.
	Vendor uint32 `json:"vendor,omitempty"`

	// Power is the reported power status.
	Power string `json:"power,omitempty"`
}

// StatusMessage reports bridge operational status.
// Topic: cecbridge/system/status
// QoS: 1, Retained: Yes
type StatusMessage struct {
	// Status is "online" while the bridge runs; the broker publishes an
	// offline LWT payload on the same topic if the bridge dies uncleanly.
	Status string `json:"status"`

	Timestamp time.Time `json:"timestamp"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Connected reports whether the CEC adapter is up.
	Connected bool `json:"connected"`

	// WorkQueue is the depth of the main command queue.
	WorkQueue int `json:"work_queue"`

	// ExecQueue is the depth of the reentrant queue used while a shell
	// command runs.
	ExecQueue int `json:"exec_queue"`
}

// newResponse creates a successful response carrying data.
func newResponse(requestID string, data map[string]any) ResponseMessage {
	return ResponseMessage{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      data,
	}
}

// newErrorResponse creates a failed response.
func newErrorResponse(requestID string, format string, args ...any) ResponseMessage {
	return ResponseMessage{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error:     fmt.Sprintf(format, args...),
	}
}
