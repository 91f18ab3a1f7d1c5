package cec

import "sync"

// Kind tags the unit of work a Command describes.
type Kind int

const (
	KindInvalid Kind = iota
	KindExit
	KindKeyPress
	KindMakeActive
	KindMakeInactive
	KindPowerOn
	KindPowerOff
	KindHostKeyPress
	KindExecShell
	KindExecToggle
	KindTextViewOn
	KindReconnect
	KindConnect
	KindDisconnect
	KindBusCommand
)

func (k Kind) String() string {
	switch k {
	case KindExit:
		return "exit"
	case KindKeyPress:
		return "key-press"
	case KindMakeActive:
		return "make-active"
	case KindMakeInactive:
		return "make-inactive"
	case KindPowerOn:
		return "power-on"
	case KindPowerOff:
		return "power-off"
	case KindHostKeyPress:
		return "host-key-press"
	case KindExecShell:
		return "exec-shell"
	case KindExecToggle:
		return "exec-toggle"
	case KindTextViewOn:
		return "text-view-on"
	case KindReconnect:
		return "reconnect"
	case KindConnect:
		return "connect"
	case KindDisconnect:
		return "disconnect"
	case KindBusCommand:
		return "bus-command"
	default:
		return "invalid"
	}
}

// serialUnset marks a command with no waiter: the worker publishes no
// completion notification for it.
const serialUnset = -1

// maxSerial bounds the correlation counter; the next allocation after it
// wraps back to 1.
const maxSerial = 10000

// Command is one unit of work for the engine. It is a value type: copied
// into a queue on submission, popped and discarded after one dispatch.
//
// Exactly one field group is meaningful per kind: Val/Device/Shell for
// the simple kinds, PowerOn/PowerOff for KindExecToggle, Opcode/Source
// for KindBusCommand. The dispatcher ignores fields outside the active
// group.
type Command struct {
	Kind   Kind
	Val    int
	Device *Device
	Shell  string

	// Toggle sub-queues, replayed by KindExecToggle depending on the
	// device's observed power status.
	PowerOn  []Command
	PowerOff []Command

	// Inbound bus command payload (KindBusCommand only).
	Opcode Opcode
	Source LogicalAddress

	// Serial is the correlation number for synchronous waiters.
	// serialUnset means fire-and-forget.
	Serial int
}

// NewCommand builds a command with no payload (exit, connect, disconnect,
// reconnect, make-active, make-inactive).
func NewCommand(kind Kind) Command {
	return Command{
		Kind:   kind,
		Val:    -1,
		Opcode: OpcodeNone,
		Source: AddressUnknown,
		Serial: serialUnset,
	}
}

// NewDeviceCommand builds a command carrying an integer payload and an
// optional target device (key-press, host-key-press, power-on/off,
// text-view-on).
func NewDeviceCommand(kind Kind, val int, dev *Device) Command {
	c := NewCommand(kind)
	c.Val = val
	c.Device = dev
	return c
}

// NewShellCommand builds a KindExecShell command running the given line
// through /bin/sh.
func NewShellCommand(shell string) Command {
	c := NewCommand(KindExecShell)
	c.Shell = shell
	return c
}

// NewToggleCommand builds a KindExecToggle command: when dispatched, the
// engine queries dev's power status and replays onCmds if the device is
// off or in standby, offCmds if it is on.
func NewToggleCommand(dev *Device, onCmds, offCmds []Command) Command {
	c := NewCommand(KindExecToggle)
	c.Device = dev
	c.PowerOn = onCmds
	c.PowerOff = offCmds
	return c
}

// NewBusCommand builds a KindBusCommand for an inbound protocol command
// received from the bus.
func NewBusCommand(op Opcode, source LogicalAddress) Command {
	c := NewCommand(KindBusCommand)
	c.Opcode = op
	c.Source = source
	return c
}

// serialAllocator hands out correlation serials process-wide. Only
// assign-if-unassigned semantics are exposed; the raw counter is never
// read directly.
var serialAllocator = struct {
	mu   sync.Mutex
	next int
}{next: 1}

// EnsureSerial returns the command's serial, allocating one on first use.
// Concurrent callers never observe the same serial for distinct commands.
func (c *Command) EnsureSerial() int {
	serialAllocator.mu.Lock()
	defer serialAllocator.mu.Unlock()

	if c.Serial != serialUnset {
		return c.Serial
	}
	c.Serial = serialAllocator.next
	serialAllocator.next++
	if serialAllocator.next > maxSerial {
		serialAllocator.next = 1
	}
	return c.Serial
}
