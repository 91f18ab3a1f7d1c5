package cec

import "fmt"

// Device describes a bus endpoint by physical topology address and/or a
// configured logical address. The resolved ("used") logical address is
// cached on the instance the first time resolution succeeds and is never
// reset except by rebuilding the descriptor from configuration.
//
// Resolution itself lives on the engine because it needs live bus
// topology; see Engine.resolve.
type Device struct {
	// Physical is the HDMI topology address. Zero means unset.
	Physical PhysicalAddress

	// Defined is the configured logical address, used as a fallback when
	// no physical match is found on the bus.
	Defined LogicalAddress

	// used is the runtime-resolved logical address. Set at most once.
	used LogicalAddress
}

// NewDevice builds a descriptor from configuration. Either field may be
// left unset (zero physical address, AddressUnknown logical).
func NewDevice(physical PhysicalAddress, defined LogicalAddress) *Device {
	return &Device{
		Physical: physical,
		Defined:  defined,
		used:     AddressUnknown,
	}
}

// Resolved returns the cached logical address, AddressUnknown if
// resolution has not succeeded yet.
func (d *Device) Resolved() LogicalAddress {
	if d == nil {
		return AddressUnknown
	}
	return d.used
}

func (d *Device) String() string {
	if d == nil {
		return "<any>"
	}
	return fmt.Sprintf("physical=%s defined=%d used=%d", d.Physical, d.Defined, d.used)
}
