package bridge

import (
	"fmt"

	"github.com/nerrad567/cecbridge/internal/cec"
	"github.com/nerrad567/cecbridge/internal/infrastructure/config"
)

// menu is one named menu with its command lists already built.
//
// A menu is either list-driven (on_start/on_stop) or toggle-driven
// (device plus on_power_on/on_power_off). Toggle-driven menus submit a
// single toggle command whose branch is picked from the device's power
// status at dispatch time.
type menu struct {
	device     *cec.Device
	onStart    []cec.Command
	onStop     []cec.Command
	onPowerOn  []cec.Command
	onPowerOff []cec.Command
}

// toggled reports whether the menu is toggle-driven.
func (m menu) toggled() bool {
	return m.device != nil && (len(m.onPowerOn) > 0 || len(m.onPowerOff) > 0)
}

// buildMenus translates configured menus into built command lists.
func buildMenus(cfgs map[string]config.MenuConfig, builder *Builder) (map[string]menu, error) {
	menus := make(map[string]menu, len(cfgs))
	for name, mc := range cfgs {
		var dev *cec.Device
		if mc.Device != "" {
			dev = builder.Device(mc.Device)
			if dev == nil {
				return nil, fmt.Errorf("menu %q: unknown device %q", name, mc.Device)
			}
		}

		onStart, err := builder.BuildList(mc.OnStart)
		if err != nil {
			return nil, fmt.Errorf("menu %q on_start: %w", name, err)
		}
		onStop, err := builder.BuildList(mc.OnStop)
		if err != nil {
			return nil, fmt.Errorf("menu %q on_stop: %w", name, err)
		}
		onPowerOn, err := builder.BuildList(mc.OnPowerOn)
		if err != nil {
			return nil, fmt.Errorf("menu %q on_power_on: %w", name, err)
		}
		onPowerOff, err := builder.BuildList(mc.OnPowerOff)
		if err != nil {
			return nil, fmt.Errorf("menu %q on_power_off: %w", name, err)
		}

		menus[name] = menu{
			device:     dev,
			onStart:    onStart,
			onStop:     onStop,
			onPowerOn:  onPowerOn,
			onPowerOff: onPowerOff,
		}
	}
	return menus, nil
}

// ExecMenu implements cec.MenuRunner. The engine calls this from its
// worker goroutine during handler dispatch; submission only queues, so
// no self-deadlock is possible.
func (b *Bridge) ExecMenu(name string) {
	m, ok := b.menus[name]
	if !ok {
		b.logWarn("unknown menu", "menu", name)
		return
	}

	if m.toggled() {
		b.engine.Submit(cec.NewToggleCommand(m.device, m.onPowerOn, m.onPowerOff))
		return
	}
	b.engine.SubmitQueue(m.onStart)
}

// StopMenu implements cec.MenuRunner.
func (b *Bridge) StopMenu(name string) {
	m, ok := b.menus[name]
	if !ok {
		b.logWarn("unknown menu", "menu", name)
		return
	}
	b.engine.SubmitQueue(m.onStop)
}
