// Package bridge connects the CEC command engine to MQTT.
//
// The bridge owns the daemon's outward surface: controllers publish
// CommandMessage payloads to cecbridge/command and RequestMessage
// payloads to cecbridge/request; the bridge translates them into engine
// commands and answers requests on cecbridge/response/{request_id}.
// Bus activity flows the other way as events:
//
//	cecbridge/event/key     remote key presses relayed from the bus
//	cecbridge/event/volume  volume steps forwarded to the audio device
//	cecbridge/event/mode    source mode changes (tv, radio, replay)
//	cecbridge/event/device  devices sighted during bus scans
//	cecbridge/system/status retained status snapshot, refreshed periodically
//
// The bridge also implements the engine's callback interfaces
// (cec.KeySink, cec.MenuRunner, cec.DeviceObserver), which creates a
// construction cycle: build the bridge first, pass it in the engine
// options, then attach the engine with SetEngine before Start.
//
// Builder is the shared translation path from configuration entries and
// inbound messages to engine commands; BuildDevices, BuildKeymaps, and
// BuildHandlerTable construct the engine's device table, key maps, and
// bus-command handlers from the same configuration types.
package bridge
