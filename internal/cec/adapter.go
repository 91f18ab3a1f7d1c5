package cec

import "time"

// Adapter is the engine's view of the underlying CEC hardware. All calls
// happen on the worker goroutine only; implementations are not required
// to be safe for concurrent use.
type Adapter interface {
	// Close releases the adapter. The engine calls SetInactiveView first
	// during an orderly disconnect.
	Close()

	// ActiveDevices reports which of the 16 logical slots responded
	// during the last bus scan.
	ActiveDevices() [16]bool

	// OwnAddresses reports the logical addresses claimed by this host.
	OwnAddresses() [16]bool

	// PhysicalAddressOf returns the topology address of a bus device,
	// zero if unknown.
	PhysicalAddressOf(addr LogicalAddress) PhysicalAddress

	// OSDName returns the device's advertised display name.
	OSDName(addr LogicalAddress) string

	// VendorID returns the device's IEEE OUI vendor code, zero if unknown.
	VendorID(addr LogicalAddress) uint32

	// PowerStatus queries the device's current power state.
	PowerStatus(addr LogicalAddress) PowerStatus

	// PowerOn asks the device to wake.
	PowerOn(addr LogicalAddress) error

	// Standby asks the device to enter standby.
	Standby(addr LogicalAddress) error

	// SetActiveSource announces this host as the active source.
	SetActiveSource() error

	// SetInactiveView withdraws this host as the active source.
	SetInactiveView() error

	// TextViewOn wakes the device and switches its input to this host.
	TextViewOn(addr LogicalAddress) error

	// Poll sends a point-to-point poll and reports whether the device
	// acknowledged it.
	Poll(addr LogicalAddress) bool

	// SendKeyPress forwards a user-control key press to the device.
	SendKeyPress(addr LogicalAddress, code UserControlCode) error

	// SendKeyRelease completes a press/release pair.
	SendKeyRelease(addr LogicalAddress) error
}

// Alert identifies an out-of-band adapter condition.
type Alert int

const (
	AlertConnectionLost Alert = iota
	AlertPermissionError
	AlertPortBusy
)

func (a Alert) String() string {
	switch a {
	case AlertConnectionLost:
		return "connection lost"
	case AlertPermissionError:
		return "permission error"
	case AlertPortBusy:
		return "port busy"
	default:
		return "unknown"
	}
}

// Callbacks is the set of handlers an adapter invokes on bus activity.
// Handlers must not call back into the adapter; the engine's handlers
// only construct a Command and enqueue it.
type Callbacks struct {
	// KeyPress reports a user-control key event. duration is zero for
	// the initial press and nonzero for release/repeat events.
	KeyPress func(code UserControlCode, duration time.Duration)

	// Command reports an inbound protocol command addressed to the host.
	Command func(op Opcode, initiator LogicalAddress)

	// Alert reports an out-of-band condition, notably connection loss.
	Alert func(alert Alert)

	// SourceActivated reports active-source changes on the bus.
	SourceActivated func(addr LogicalAddress, active bool)
}

// AdapterConfig carries the open parameters for an adapter.
type AdapterConfig struct {
	// Port is the serial device path (e.g. /dev/ttyACM0). Empty selects
	// the first adapter found.
	Port string

	// DeviceName is the OSD name announced to the bus.
	DeviceName string

	// HDMIPort is the TV input this host is attached to (1-15).
	HDMIPort int

	// BaseDevice is the logical address of the device the host is wired
	// to, usually the TV.
	BaseDevice LogicalAddress

	// PhysicalAddress overrides topology autodetection when nonzero.
	PhysicalAddress PhysicalAddress
}

// Opener opens an adapter. The engine calls it on the worker goroutine
// during connect; tests substitute a fake.
type Opener func(cfg AdapterConfig, cb Callbacks) (Adapter, error)
