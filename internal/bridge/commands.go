package bridge

import (
	"fmt"

	"github.com/nerrad567/cecbridge/internal/cec"
	"github.com/nerrad567/cecbridge/internal/infrastructure/config"
	"github.com/nerrad567/cecbridge/internal/keymap"
)

// Builder translates configuration entries into engine commands.
// It carries the named device table and the active key map so command
// lists, handlers, and inbound MQTT commands all share one translation
// path.
type Builder struct {
	devices map[string]*cec.Device
	keys    *keymap.Map
}

// NewBuilder creates a builder over the given device table and key map.
func NewBuilder(devices map[string]*cec.Device, keys *keymap.Map) *Builder {
	return &Builder{devices: devices, keys: keys}
}

// BuildDevices constructs the shared device table from configuration.
// Each named device gets exactly one *cec.Device so the engine's
// resolution cache is shared by every command referring to it.
func BuildDevices(cfgs map[string]config.DeviceConfig) (map[string]*cec.Device, error) {
	devices := make(map[string]*cec.Device, len(cfgs))
	for name, dc := range cfgs {
		physical := cec.PhysicalAddress(0)
		if dc.PhysicalAddress != "" {
			p, err := cec.ParsePhysicalAddress(dc.PhysicalAddress)
			if err != nil {
				return nil, fmt.Errorf("device %q: %w", name, err)
			}
			physical = p
		}
		defined := cec.AddressUnknown
		if dc.LogicalAddress != nil {
			defined = cec.LogicalAddress(*dc.LogicalAddress)
			if !defined.Valid() {
				return nil, fmt.Errorf("device %q: logical address %d out of range", name, *dc.LogicalAddress)
			}
		}
		devices[name] = cec.NewDevice(physical, defined)
	}
	return devices, nil
}

// Device returns the named device or nil when the name is empty or
// unknown.
func (b *Builder) Device(name string) *cec.Device {
	if name == "" {
		return nil
	}
	return b.devices[name]
}

// Build translates one configuration entry into an engine command.
func (b *Builder) Build(cc config.CommandConfig) (cec.Command, error) {
	dev, err := b.lookupDevice(cc)
	if err != nil {
		return cec.Command{}, err
	}

	switch cc.Action {
	case "poweron":
		return cec.NewDeviceCommand(cec.KindPowerOn, -1, dev), nil
	case "poweroff":
		return cec.NewDeviceCommand(cec.KindPowerOff, -1, dev), nil
	case "makeactive":
		return cec.NewCommand(cec.KindMakeActive), nil
	case "makeinactive":
		return cec.NewCommand(cec.KindMakeInactive), nil
	case "textviewon":
		return cec.NewDeviceCommand(cec.KindTextViewOn, -1, dev), nil
	case "keypress":
		code, err := b.busCode(cc.Key)
		if err != nil {
			return cec.Command{}, err
		}
		return cec.NewDeviceCommand(cec.KindKeyPress, int(code), nil), nil
	case "hostkey":
		key, err := keymap.ParseKey(cc.Key)
		if err != nil {
			return cec.Command{}, err
		}
		return cec.NewDeviceCommand(cec.KindHostKeyPress, int(key), dev), nil
	case "exec":
		if cc.Shell == "" {
			return cec.Command{}, fmt.Errorf("exec action requires a shell line")
		}
		return cec.NewShellCommand(cc.Shell), nil
	case "toggle":
		if dev == nil {
			return cec.Command{}, fmt.Errorf("toggle action requires a device")
		}
		onCmds, err := b.BuildList(cc.OnPowerOn)
		if err != nil {
			return cec.Command{}, fmt.Errorf("toggle on_power_on: %w", err)
		}
		offCmds, err := b.BuildList(cc.OnPowerOff)
		if err != nil {
			return cec.Command{}, fmt.Errorf("toggle on_power_off: %w", err)
		}
		return cec.NewToggleCommand(dev, onCmds, offCmds), nil
	case "connect":
		return cec.NewCommand(cec.KindConnect), nil
	case "disconnect":
		return cec.NewCommand(cec.KindDisconnect), nil
	case "reconnect":
		return cec.NewCommand(cec.KindReconnect), nil
	default:
		return cec.Command{}, fmt.Errorf("unknown action %q", cc.Action)
	}
}

// BuildList translates a configured command list.
func (b *Builder) BuildList(cfgs []config.CommandConfig) ([]cec.Command, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	cmds := make([]cec.Command, 0, len(cfgs))
	for i, cc := range cfgs {
		cmd, err := b.Build(cc)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// BuildHandlerTable translates configured bus-command handlers.
func (b *Builder) BuildHandlerTable(cfgs []config.HandlerConfig) (cec.HandlerTable, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}
	table := make(cec.HandlerTable)
	for i, hc := range cfgs {
		op, err := cec.ParseOpcode(hc.Opcode)
		if err != nil {
			return nil, fmt.Errorf("handler %d: %w", i, err)
		}
		var initiator *cec.Device
		if hc.Device != "" {
			initiator = b.devices[hc.Device]
			if initiator == nil {
				return nil, fmt.Errorf("handler %d: unknown device %q", i, hc.Device)
			}
		}
		cmds, err := b.BuildList(hc.Commands)
		if err != nil {
			return nil, fmt.Errorf("handler %d: %w", i, err)
		}
		table[op] = append(table[op], cec.CommandHandler{
			Initiator: initiator,
			ExecMenu:  hc.ExecMenu,
			StopMenu:  hc.StopMenu,
			Commands:  cmds,
		})
	}
	return table, nil
}

// lookupDevice resolves the entry's device reference. A missing name is
// an error; an empty name means "no target device".
func (b *Builder) lookupDevice(cc config.CommandConfig) (*cec.Device, error) {
	if cc.Device == "" {
		return nil, nil
	}
	dev, ok := b.devices[cc.Device]
	if !ok {
		return nil, fmt.Errorf("unknown device %q", cc.Device)
	}
	return dev, nil
}

// busCode translates a symbolic key name into the bus user-control code
// the active map binds it to.
func (b *Builder) busCode(name string) (cec.UserControlCode, error) {
	key, err := keymap.ParseKey(name)
	if err != nil {
		return 0, err
	}
	code, ok := b.keys.HostToBus(int(key))
	if !ok {
		return 0, fmt.Errorf("key %q has no bus mapping in map %q", name, b.keys.Name())
	}
	return code, nil
}

// BuildKeymaps constructs the key map set from configuration. Each named
// map starts as a clone of the default map with the configured bindings
// applied on top. Returns the set and the active map.
func BuildKeymaps(cfg config.KeymapsConfig) (*keymap.Set, *keymap.Map, error) {
	set := keymap.NewSet()
	for name, bindings := range cfg.Maps {
		m := keymap.Default().Clone(name)
		for _, kb := range bindings {
			code := cec.UserControlCode(kb.Code)
			m.ClearBus(code)
			for _, keyName := range kb.Keys {
				key, err := keymap.ParseKey(keyName)
				if err != nil {
					return nil, nil, fmt.Errorf("keymap %q code %d: %w", name, kb.Code, err)
				}
				m.Bind(code, key)
			}
		}
		set.Add(m)
	}
	active := set.Select(cfg.Active)
	return set, active, nil
}
