package mqtt

import "fmt"

// TopicPrefix is the base for all cecbridge topics.
//
// Scheme: cecbridge/{category}[/{qualifier}]
const TopicPrefix = "cecbridge"

// Topics provides builders for cecbridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.Command()
//	// Returns: "cecbridge/command"
type Topics struct{}

// Command returns the topic for fire-and-forget bus commands.
//
// Example: cecbridge/command
func (Topics) Command() string {
	return fmt.Sprintf("%s/command", TopicPrefix)
}

// Request returns the topic for request/response queries.
//
// Example: cecbridge/request
func (Topics) Request() string {
	return fmt.Sprintf("%s/request", TopicPrefix)
}

// Response returns the topic for the response to a specific request.
//
// Example: cecbridge/response/req-abc123
func (Topics) Response(requestID string) string {
	return fmt.Sprintf("%s/response/%s", TopicPrefix, requestID)
}

// EventKey returns the topic for remote key press events.
//
// Example: cecbridge/event/key
func (Topics) EventKey() string {
	return fmt.Sprintf("%s/event/key", TopicPrefix)
}

// EventVolume returns the topic for volume change events.
//
// Example: cecbridge/event/volume
func (Topics) EventVolume() string {
	return fmt.Sprintf("%s/event/volume", TopicPrefix)
}

// EventMode returns the topic for source mode change events.
//
// Example: cecbridge/event/mode
func (Topics) EventMode() string {
	return fmt.Sprintf("%s/event/mode", TopicPrefix)
}

// EventDevice returns the topic for bus device discovery events.
//
// Example: cecbridge/event/device
func (Topics) EventDevice() string {
	return fmt.Sprintf("%s/event/device", TopicPrefix)
}

// SystemStatus returns the system status topic. The broker publishes
// an offline payload here via LWT if the bridge dies uncleanly.
//
// Example: cecbridge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", TopicPrefix)
}

// AllResponses returns a pattern matching all response topics.
//
// Pattern: cecbridge/response/+
func (Topics) AllResponses() string {
	return fmt.Sprintf("%s/response/+", TopicPrefix)
}

// AllEvents returns a pattern matching all event topics.
//
// Pattern: cecbridge/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefix)
}

// AllTopics returns a pattern matching all cecbridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: cecbridge/#
func (Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", TopicPrefix)
}
