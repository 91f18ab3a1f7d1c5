package cec

// CommandHandler describes one reaction to an inbound bus command:
// optional named-menu start/stop actions plus a command list to submit.
type CommandHandler struct {
	// Initiator filters on the sending device. Nil matches any device.
	Initiator *Device

	// ExecMenu names a configured menu to start.
	ExecMenu string

	// StopMenu names a configured menu to stop.
	StopMenu string

	// Commands are submitted to the normal queue in order.
	Commands []Command
}

// HandlerTable maps an inbound opcode to its handlers. The mapping is
// multi-valued: every handler whose initiator filter matches runs, in
// table order.
type HandlerTable map[Opcode][]CommandHandler

// MenuRunner starts and stops named menus on behalf of handler dispatch.
// The engine never renders menus itself.
type MenuRunner interface {
	ExecMenu(name string)
	StopMenu(name string)
}

// KeyMapper translates between bus key codes and host key identifiers.
// One bus key may expand to several host keys.
type KeyMapper interface {
	BusToHost(code UserControlCode) []int
	HostToBus(key int) (UserControlCode, bool)
}

// KeySink receives translated host key events.
type KeySink interface {
	Put(key int)
}

// DeviceInfo is a snapshot of one bus device taken during connect.
type DeviceInfo struct {
	Logical  LogicalAddress
	Physical PhysicalAddress
	OSDName  string
	Vendor   uint32
	Power    PowerStatus
}

// DeviceObserver is notified of devices discovered on the bus. Optional;
// cecbridge wires the SQLite registry here.
type DeviceObserver interface {
	DeviceSeen(info DeviceInfo)
}
