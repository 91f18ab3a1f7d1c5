package device

import "time"

// Record is one device observed on the HDMI-CEC bus.
//
// Records are keyed by logical address. A logical address can move
// between physical devices over time, so each sighting overwrites the
// previous one rather than accumulating.
type Record struct {
	// Logical is the bus logical address (0-15).
	Logical int

	// Physical is the dotted physical address (e.g. "1.0.0.0").
	Physical string

	// OSDName is the name the device announced, if any.
	OSDName string

	// Vendor is the 24-bit IEEE vendor identifier, 0 when unknown.
	Vendor uint32

	// Power is the last reported power status (e.g. "on", "standby").
	Power string

	// FirstSeen is when this logical address was first recorded.
	FirstSeen time.Time

	// LastSeen is when this logical address was most recently scanned.
	LastSeen time.Time
}
